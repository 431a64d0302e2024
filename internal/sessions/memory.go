package sessions

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/models"
)

const memoryShardCount = 32

type memoryShard struct {
	mu    sync.Mutex
	items map[string]*models.AuthSession
}

// MemoryStore keeps sessions in process memory. Keys are spread over a fixed
// number of shards, each with its own lock, so writes to unrelated sessions
// do not contend on a single mutex.
type MemoryStore struct {
	shards [memoryShardCount]*memoryShard
	now    func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	s := &MemoryStore{now: o.now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{items: make(map[string]*models.AuthSession)}
	}
	return s
}

func (s *MemoryStore) shard(id string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%memoryShardCount]
}

func (s *MemoryStore) Put(_ context.Context, session *models.AuthSession) error {
	now := s.now()
	if err := session.Validate(now); err != nil {
		return err
	}

	sh := s.shard(session.SessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.items[session.SessionID]; ok && !existing.Expired(now) {
		return common.ErrAlreadyExists
	}
	item := session.Clone()
	item.ExpiresAt = item.ExpiresAtSecond()
	sh.items[session.SessionID] = item
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*models.AuthSession, error) {
	sh := s.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	item, ok := sh.items[sessionID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if item.Expired(s.now()) {
		delete(sh.items, sessionID)
		return nil, common.ErrorNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) MarkComplete(_ context.Context, sessionID string) error {
	return s.finish(sessionID, models.StatusComplete, "")
}

func (s *MemoryStore) MarkFailed(_ context.Context, sessionID string, reason string) error {
	return s.finish(sessionID, models.StatusFailed, reason)
}

func (s *MemoryStore) finish(sessionID string, status models.Status, reason string) error {
	sh := s.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	item, ok := sh.items[sessionID]
	if !ok || item.Expired(s.now()) {
		return common.ErrorNotFound
	}
	if item.Status.IsTerminal() {
		return common.ErrAlreadyTerminal
	}
	item.Status = status
	item.Error = reason
	return nil
}

// Reap drops expired sessions, one shard at a time.
func (s *MemoryStore) Reap(_ context.Context) (int, error) {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, item := range sh.items {
			if item.Expired(now) {
				delete(sh.items, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of physically stored sessions, expired included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}
