package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/dbx"
	"github.com/dmitrijs2005/kusogate/internal/migrations"
	"github.com/dmitrijs2005/kusogate/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported database/sql drivers and their goose dialects.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var gooseDialects = map[string]string{
	DriverPostgres: "postgres",
	DriverSQLite:   "sqlite3",
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded auth_sessions schema.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return fmt.Errorf("unsupported sql driver %q", driver)
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenSQL opens the database, pings it and runs migrations.
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql ping: %w", err)
	}
	if err := RunMigrations(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

// SQLStore keeps sessions in the auth_sessions table. The queries are plain
// SQL understood by both PostgreSQL and SQLite; expiry is held as unix
// seconds in the ttl column.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{db: db, now: o.now}
}

func (s *SQLStore) Put(ctx context.Context, session *models.AuthSession) error {
	now := s.now()
	if err := session.Validate(now); err != nil {
		return err
	}

	// An existing row is overwritten only when it has already expired.
	query := `
		INSERT INTO auth_sessions (session_id, encrypted_token, status, error, ttl)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET encrypted_token = excluded.encrypted_token,
		    status = excluded.status,
		    error = NULL,
		    ttl = excluded.ttl
		WHERE auth_sessions.ttl <= $5
	`
	res, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.EncryptedToken, string(session.Status), session.ExpiresAt.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	query := `
		SELECT session_id, encrypted_token, status, COALESCE(error, ''), ttl
		FROM auth_sessions
		WHERE session_id = $1 AND ttl > $2
	`
	var (
		session models.AuthSession
		status  string
		ttl     int64
	)
	err := s.db.QueryRowContext(ctx, query, sessionID, s.now().Unix()).
		Scan(&session.SessionID, &session.EncryptedToken, &status, &session.Error, &ttl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	session.Status = models.Status(status)
	session.ExpiresAt = time.Unix(ttl, 0)
	return &session, nil
}

func (s *SQLStore) MarkComplete(ctx context.Context, sessionID string) error {
	return s.finish(ctx, sessionID, models.StatusComplete, sql.NullString{})
}

func (s *SQLStore) MarkFailed(ctx context.Context, sessionID string, reason string) error {
	return s.finish(ctx, sessionID, models.StatusFailed, sql.NullString{String: reason, Valid: true})
}

// finish performs the PENDING -> terminal compare-and-set. When no row is
// updated, the same transaction tells a missing/expired session apart from
// one that already reached a terminal state.
func (s *SQLStore) finish(ctx context.Context, sessionID string, status models.Status, reason sql.NullString) error {
	now := s.now().Unix()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE auth_sessions
			SET status = $2, error = $3
			WHERE session_id = $1 AND status = 'PENDING' AND ttl > $4
		`, sessionID, string(status), reason, now)
		if err != nil {
			return fmt.Errorf("error performing sql request: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 1 {
			return nil
		}

		var ttl int64
		err = tx.QueryRowContext(ctx, `SELECT ttl FROM auth_sessions WHERE session_id = $1`, sessionID).Scan(&ttl)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if ttl <= now {
			return common.ErrorNotFound
		}
		return common.ErrAlreadyTerminal
	})
}

// Reap deletes expired rows.
func (s *SQLStore) Reap(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE ttl <= $1`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}
