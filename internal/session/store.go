package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"contractbot/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contractbot",
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held in memory.",
	})

	sessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contractbot",
		Subsystem: "session",
		Name:      "expired_total",
		Help:      "Sessions dropped after idling past the TTL.",
	})
)

// Store is the session store contract used by the dialogue manager.
type Store interface {
	// Get returns a copy of the session, or false when absent or expired.
	Get(id string) (*ConversationSession, bool)
	// Put stores a copy of s under s.ID.
	Put(s *ConversationSession)
	// Remove drops the session.
	Remove(id string)
	// Lock serializes turns for one id. Call the returned func to release.
	Lock(id string) (unlock func())
}

// MemoryStore is a sharded in-memory Store with idle expiry. Different ids
// hash to independent shards and independent per-key locks.
type MemoryStore struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*ConversationSession
	locks    KeyedMutex
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore returns a store with the given shard count and idle TTL.
// A ttl of zero disables expiry.
func NewMemoryStore(shards int, ttl time.Duration, opts ...StoreOption) *MemoryStore {
	if shards < 1 {
		shards = 1
	}
	m := &MemoryStore{
		shards: make([]*shard, shards),
		ttl:    ttl,
		now:    time.Now,
	}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*ConversationSession)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// TTL returns the idle expiry.
func (m *MemoryStore) TTL() time.Duration { return m.ttl }

// Get implements Store.
func (m *MemoryStore) Get(id string) (*ConversationSession, bool) {
	sh := m.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.Expired(m.now(), m.ttl) {
		sh.mu.Lock()
		if cur, still := sh.sessions[id]; still && cur == s {
			delete(sh.sessions, id)
			sessionsActive.Dec()
			sessionsExpiredTotal.Inc()
		}
		sh.mu.Unlock()
		logging.SessionDebug("session %s expired", id)
		return nil, false
	}
	return s.Clone(), true
}

// Put implements Store.
func (m *MemoryStore) Put(s *ConversationSession) {
	if s == nil || s.ID == "" {
		return
	}
	c := s.Clone()
	sh := m.shardFor(s.ID)
	sh.mu.Lock()
	if _, exists := sh.sessions[s.ID]; !exists {
		sessionsActive.Inc()
	}
	sh.sessions[s.ID] = c
	sh.mu.Unlock()
}

// Remove implements Store.
func (m *MemoryStore) Remove(id string) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	if _, exists := sh.sessions[id]; exists {
		delete(sh.sessions, id)
		sessionsActive.Dec()
	}
	sh.mu.Unlock()
}

// Lock implements Store.
func (m *MemoryStore) Lock(id string) func() {
	return m.shardFor(id).locks.Lock(id)
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Range calls fn with a copy of every live session until fn returns false.
func (m *MemoryStore) Range(fn func(*ConversationSession) bool) {
	now := m.now()
	for _, sh := range m.shards {
		sh.mu.RLock()
		batch := make([]*ConversationSession, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			if !s.Expired(now, m.ttl) {
				batch = append(batch, s.Clone())
			}
		}
		sh.mu.RUnlock()
		for _, s := range batch {
			if !fn(s) {
				return
			}
		}
	}
}

// Sweep removes expired sessions and returns the ids it dropped.
func (m *MemoryStore) Sweep() []string {
	now := m.now()
	var dropped []string
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if s.Expired(now, m.ttl) {
				delete(sh.sessions, id)
				dropped = append(dropped, id)
			}
		}
		sh.mu.Unlock()
	}
	if n := len(dropped); n > 0 {
		sessionsActive.Sub(float64(n))
		sessionsExpiredTotal.Add(float64(n))
		logging.Session("swept %d expired session(s)", n)
	}
	return dropped
}

// RunSweeper sweeps every interval until ctx is done. onDrop, when set, sees
// the ids removed by each sweep.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, onDrop func([]string)) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if dropped := m.Sweep(); len(dropped) > 0 && onDrop != nil {
				onDrop(dropped)
			}
		}
	}
}
