package sessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- test clock ----

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_760_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func pendingSession(id string, clock *testClock, ttl time.Duration) *models.AuthSession {
	return &models.AuthSession{
		SessionID:      id,
		EncryptedToken: "c2VhbGVkLXRva2Vu",
		Status:         models.StatusPending,
		ExpiresAt:      clock.Now().Add(ttl),
	}
}

// runStoreContract exercises the behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T, clock *testClock) Store) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("s1", clock, 5*time.Minute)))

		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, "c2VhbGVkLXRva2Vu", got.EncryptedToken)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Empty(t, got.Error)
		assert.Equal(t, clock.Now().Add(5*time.Minute).Unix(), got.ExpiresAt.Unix())
	})

	t.Run("invalid session rejected", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		err := s.Put(ctx, pendingSession("s1", clock, 0))
		require.ErrorIs(t, err, common.ErrInvalidSession)
	})

	t.Run("expiry is kept in whole seconds", func(t *testing.T) {
		clock := newTestClock()
		clock.Advance(200 * time.Millisecond)
		s := newStore(t, clock)

		// ends inside the current second: nothing could ever read it back
		err := s.Put(ctx, pendingSession("short", clock, 500*time.Millisecond))
		require.ErrorIs(t, err, common.ErrInvalidSession)
		_, err = s.Get(ctx, "short")
		require.ErrorIs(t, err, common.ErrorNotFound)

		require.NoError(t, s.Put(ctx, pendingSession("s1", clock, 900*time.Millisecond)))
		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(900*time.Millisecond).Unix(), got.ExpiresAt.Unix())

		clock.Advance(799 * time.Millisecond)
		_, err = s.Get(ctx, "s1")
		require.NoError(t, err)

		clock.Advance(time.Millisecond)
		_, err = s.Get(ctx, "s1")
		require.ErrorIs(t, err, common.ErrorNotFound)
		require.ErrorIs(t, s.MarkComplete(ctx, "s1"), common.ErrorNotFound)
	})

	t.Run("duplicate unexpired put", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("dup", clock, 5*time.Minute)))
		err := s.Put(ctx, pendingSession("dup", clock, 5*time.Minute))
		require.ErrorIs(t, err, common.ErrAlreadyExists)
	})

	t.Run("expired session can be replaced", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("again", clock, time.Minute)))
		require.NoError(t, s.MarkFailed(ctx, "again", "user_declined"))
		clock.Advance(2 * time.Minute)

		require.NoError(t, s.Put(ctx, pendingSession("again", clock, time.Minute)))
		got, err := s.Get(ctx, "again")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("get absent", func(t *testing.T) {
		s := newStore(t, newTestClock())
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("get expired is not found", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("old", clock, 5*time.Minute)))
		require.NoError(t, s.MarkComplete(ctx, "old"))
		clock.Advance(5 * time.Minute)

		_, err := s.Get(ctx, "old")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("complete wins over later failure", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("s1", clock, 5*time.Minute)))
		require.NoError(t, s.MarkComplete(ctx, "s1"))
		require.ErrorIs(t, s.MarkFailed(ctx, "s1", "too late"), common.ErrAlreadyTerminal)
		require.ErrorIs(t, s.MarkComplete(ctx, "s1"), common.ErrAlreadyTerminal)

		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("failure wins over later completion", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.NoError(t, s.Put(ctx, pendingSession("s2", clock, 5*time.Minute)))
		require.NoError(t, s.MarkFailed(ctx, "s2", "user_declined"))
		require.ErrorIs(t, s.MarkComplete(ctx, "s2"), common.ErrAlreadyTerminal)

		got, err := s.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
		assert.Equal(t, "user_declined", got.Error)
	})

	t.Run("mark absent or expired", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		require.ErrorIs(t, s.MarkComplete(ctx, "nope"), common.ErrorNotFound)

		require.NoError(t, s.Put(ctx, pendingSession("late", clock, time.Minute)))
		clock.Advance(time.Minute)
		require.ErrorIs(t, s.MarkFailed(ctx, "late", "x"), common.ErrorNotFound)
	})

	t.Run("concurrent puts for distinct ids", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)

		const n = 16
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Put(ctx, pendingSession(fmt.Sprintf("c-%d", i), clock, 5*time.Minute))
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, "put %d", i)
			_, err := s.Get(ctx, fmt.Sprintf("c-%d", i))
			require.NoError(t, err)
		}
	})

	t.Run("racing terminal writes", func(t *testing.T) {
		clock := newTestClock()
		s := newStore(t, clock)
		require.NoError(t, s.Put(ctx, pendingSession("race", clock, 5*time.Minute)))

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					errs[i] = s.MarkComplete(ctx, "race")
				} else {
					errs[i] = s.MarkFailed(ctx, "race", fmt.Sprintf("reason-%d", i))
				}
			}(i)
		}
		wg.Wait()

		winners := 0
		winner := -1
		for i, err := range errs {
			if err == nil {
				winners++
				winner = i
				continue
			}
			require.ErrorIs(t, err, common.ErrAlreadyTerminal)
		}
		require.Equal(t, 1, winners)

		got, err := s.Get(ctx, "race")
		require.NoError(t, err)
		if winner%2 == 0 {
			assert.Equal(t, models.StatusComplete, got.Status)
		} else {
			assert.Equal(t, models.StatusFailed, got.Status)
			assert.Equal(t, fmt.Sprintf("reason-%d", winner), got.Error)
		}
	})
}
