package service

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

// SessionStore is the server-side session table, keyed by jti.
type SessionStore interface {
	Put(s *models.Session)
	Get(id string) (*models.Session, bool)
	Delete(id string)
}

// MemorySessionStore keeps sessions in a size-bounded LRU whose entries
// expire after the session TTL. Restarting the process logs everyone out.
type MemorySessionStore struct {
	lru      *expirable.LRU[string, *models.Session]
	log      zerolog.Logger
	capacity int
	removing atomic.Pointer[string] // jti being deleted by Delete
	now      func() time.Time
}

func NewMemorySessionStore(capacity int, ttl time.Duration, log zerolog.Logger) *MemorySessionStore {
	m := &MemorySessionStore{log: log, capacity: capacity, now: time.Now}
	m.lru = expirable.NewLRU[string, *models.Session](capacity, m.evicted, ttl)
	return m
}

// evicted runs for every removal, under the LRU lock. Only live sessions
// pushed out by the capacity bound are reported.
func (m *MemorySessionStore) evicted(id string, s *models.Session) {
	if p := m.removing.Load(); p != nil && *p == id {
		return
	}
	if s == nil || s.Expired(m.now()) {
		return
	}
	m.log.Warn().Str("user_id", s.UserID).Time("expires_at", s.ExpiresAt).
		Int("capacity", m.capacity).
		Msg("session table full, evicted a live session")
}

func (m *MemorySessionStore) Put(s *models.Session) { m.lru.Add(s.ID, s) }

func (m *MemorySessionStore) Get(id string) (*models.Session, bool) { return m.lru.Get(id) }

func (m *MemorySessionStore) Delete(id string) {
	m.removing.Store(&id)
	m.lru.Remove(id)
	m.removing.Store(nil)
}

// Len reports live sessions.
func (m *MemorySessionStore) Len() int { return m.lru.Len() }
