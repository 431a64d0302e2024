// Package sessions implements the time-bounded session store shared by the
// rendezvous client and the completion handler.
//
// Every backend honours the same contract:
//   - Put rejects an unexpired duplicate with common.ErrAlreadyExists;
//   - Get returns common.ErrorNotFound for absent or expired records, even if
//     the record has not been physically purged yet;
//   - MarkComplete/MarkFailed write only over a present, unexpired PENDING
//     record; a second terminal write yields common.ErrAlreadyTerminal and
//     leaves the first one in place.
//
// Callers never delete sessions; expiry belongs to the store.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/models"
)

// Store is the session store contract.
type Store interface {
	Put(ctx context.Context, s *models.AuthSession) error
	Get(ctx context.Context, sessionID string) (*models.AuthSession, error)
	MarkComplete(ctx context.Context, sessionID string) error
	MarkFailed(ctx context.Context, sessionID string, reason string) error
}

// Reaper is implemented by stores without native per-item expiry.
// Reap physically removes expired records and returns how many were removed.
type Reaper interface {
	Reap(ctx context.Context) (int, error)
}

type options struct {
	now func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithClock overrides the store clock (tests use a fixed clock).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// RunReaper calls r.Reap every interval until ctx is done.
func RunReaper(ctx context.Context, r Reaper, interval time.Duration, logger logging.Logger) {
	logger = logger.With("module", "session_reaper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := r.Reap(ctx)
			if err != nil {
				logger.Warn(ctx, "reap failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "expired sessions removed", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
