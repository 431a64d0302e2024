package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kuso:session:"

// putScript creates the hash unless an unexpired one is already there.
// ARGV: now, token, status, ttl, pexpire ms.
var putScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ttl')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'encrypted_user_token', ARGV[2], 'status', ARGV[3], 'ttl', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// markScript moves a PENDING session to a terminal status.
// ARGV: now, pending, status, error. Returns -1 absent/expired, 0 already terminal, 1 written.
var markScript = redis.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'status', 'ttl')
if not vals[2] or tonumber(vals[2]) <= tonumber(ARGV[1]) then
  return -1
end
if vals[1] ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[3])
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'error', ARGV[4])
else
  redis.call('HDEL', KEYS[1], 'error')
end
return 1
`)

// OpenRedis connects to addr and checks the connection with PING.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps one hash per session. Redis expires the key on its own;
// the ttl field is still checked on every read and write because the store
// clock and the server clock may disagree.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{client: client, now: o.now}
}

func (s *RedisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Put(ctx context.Context, session *models.AuthSession) error {
	now := s.now()
	if err := session.Validate(now); err != nil {
		return err
	}

	expireMs := session.ExpiresAtSecond().Sub(now).Milliseconds()
	if expireMs < 1 {
		expireMs = 1
	}

	res, err := putScript.Run(ctx, s.client, []string{s.key(session.SessionID)},
		now.Unix(),
		session.EncryptedToken,
		string(session.Status),
		session.ExpiresAt.Unix(),
		expireMs,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	if res == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	ttl, err := strconv.ParseInt(fields["ttl"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis get: bad ttl %q: %w", fields["ttl"], err)
	}

	session := &models.AuthSession{
		SessionID:      sessionID,
		EncryptedToken: fields["encrypted_user_token"],
		Status:         models.Status(fields["status"]),
		Error:          fields["error"],
		ExpiresAt:      time.Unix(ttl, 0),
	}
	if session.Expired(s.now()) {
		return nil, common.ErrorNotFound
	}
	return session, nil
}

func (s *RedisStore) MarkComplete(ctx context.Context, sessionID string) error {
	return s.finish(ctx, sessionID, models.StatusComplete, "")
}

func (s *RedisStore) MarkFailed(ctx context.Context, sessionID string, reason string) error {
	return s.finish(ctx, sessionID, models.StatusFailed, reason)
}

func (s *RedisStore) finish(ctx context.Context, sessionID string, status models.Status, reason string) error {
	res, err := markScript.Run(ctx, s.client, []string{s.key(sessionID)},
		s.now().Unix(),
		string(models.StatusPending),
		string(status),
		reason,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis update: %w", err)
	}

	switch res {
	case -1:
		return common.ErrorNotFound
	case 0:
		return common.ErrAlreadyTerminal
	}
	return nil
}
