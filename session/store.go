// Package session maintains the in-memory registry of remote conversations.
//
// The store is bounded: the population never exceeds the configured maximum
// after any operation returns, and entries idle longer than the TTL are
// removed lazily before each acquisition. Entries carry no remote state of
// their own; losing one only means the next ask opens a fresh conversation.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/naparnik-ai/copilot/core"
)

// Observer receives store lifecycle events, typically to feed metrics.
type Observer interface {
	SessionCreated()
	SessionEvicted()
	SessionsExpired(count int)
}

// Store is a mutex-guarded registry of live conversation handles.
type Store struct {
	mu       sync.Mutex
	sessions map[string]core.Session

	max      int
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customizes store construction.
type Option func(*Store)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger for eviction and expiry events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver attaches a lifecycle observer.
func WithObserver(observer Observer) Option {
	return func(s *Store) { s.observer = observer }
}

// NewStore builds a store holding at most maxSessions entries, each living
// for at most ttl of idle time. Non-positive limits are configuration
// errors; nothing is clamped.
func NewStore(maxSessions int, ttl time.Duration, opts ...Option) (*Store, error) {
	if maxSessions <= 0 {
		return nil, core.NewError(core.ErrConfig, "session store: max sessions must be positive")
	}
	if ttl <= 0 {
		return nil, core.NewError(core.ErrConfig, "session store: ttl must be positive")
	}
	s := &Store{
		sessions: make(map[string]core.Session),
		max:      maxSessions,
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Acquire selects the conversation the next ask should use. It sweeps
// expired entries first, then returns the most recently used live id with
// ok=true. ok=false means the caller must open a fresh conversation, either
// because forceNew was requested or because no live entry remains. At
// capacity the least recently used entry is evicted before selection, so a
// slot is always free for the id the subsequent send may register. The
// caller registers the freshly opened id with Touch afterwards; Acquire
// itself never performs network activity and never blocks beyond the lock.
func (s *Store) Acquire(forceNew bool) (id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	if forceNew || len(s.sessions) == 0 {
		return "", false
	}
	if len(s.sessions) >= s.max {
		s.evictLocked()
	}
	// With a capacity of one the eviction empties the store, which means a
	// fresh conversation.
	if len(s.sessions) == 0 {
		return "", false
	}
	return s.mostRecentLocked(), true
}

// Touch marks id as used now. Unknown ids are inserted, so a handle that
// was evicted while its remote call was in flight heals itself; when the
// insert would exceed the population bound the least recently used entry is
// evicted first.
func (s *Store) Touch(id string) {
	if id == "" {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[id]; exists {
		sess.LastUsedAt = now
		s.sessions[id] = sess
		return
	}
	for len(s.sessions) >= s.max {
		s.evictLocked()
	}
	s.sessions[id] = core.Session{ID: id, CreatedAt: now, LastUsedAt: now}
	if s.observer != nil {
		s.observer.SessionCreated()
	}
}

// Forget drops id if present. Missing ids are not an error.
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes every entry idle longer than the TTL and reports how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Len reports the current population.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stats describes the store for logs and introspection.
type Stats struct {
	Active   int           `json:"active"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
}

// Stats returns current population statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Active: len(s.sessions), Capacity: s.max, TTL: s.ttl}
}

// Snapshot returns a copy of every live entry, ordered arbitrarily.
func (s *Store) Snapshot() []core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Store) sweepLocked() int {
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.IdleFor(now) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("expired sessions removed",
			slog.Int("count", removed),
			slog.Int("remaining", len(s.sessions)))
		if s.observer != nil {
			s.observer.SessionsExpired(removed)
		}
	}
	return removed
}

// evictLocked removes the least recently used entry. Ties on recency fall
// to the lexicographically smallest id so eviction stays deterministic.
func (s *Store) evictLocked() {
	victim := ""
	var oldest time.Time
	for id, sess := range s.sessions {
		if victim == "" || sess.LastUsedAt.Before(oldest) ||
			(sess.LastUsedAt.Equal(oldest) && id < victim) {
			victim = id
			oldest = sess.LastUsedAt
		}
	}
	if victim == "" {
		return
	}
	delete(s.sessions, victim)
	s.logger.Debug("session evicted", slog.String("conversation_id", victim))
	if s.observer != nil {
		s.observer.SessionEvicted()
	}
}

// mostRecentLocked returns the most recently used id. Ties fall to the
// lexicographically smallest id.
func (s *Store) mostRecentLocked() string {
	best := ""
	var newest time.Time
	for id, sess := range s.sessions {
		if best == "" || sess.LastUsedAt.After(newest) ||
			(sess.LastUsedAt.Equal(newest) && id < best) {
			best = id
			newest = sess.LastUsedAt
		}
	}
	return best
}
