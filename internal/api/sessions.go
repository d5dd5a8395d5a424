package api

import (
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/cursor-login/internal/auth/cursor"
)

const loginSessionTTL = 10 * time.Minute

type loginSessionEntry struct {
	Session   *cursor.LoginSession
	CreatedAt time.Time
	ExpiresAt time.Time
}

// loginSessionStore keeps the verifier of pending sessions server-side.
// Only one session is active at a time; registering a new one replaces it.
type loginSessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]loginSessionEntry
}

func newLoginSessionStore(ttl time.Duration) *loginSessionStore {
	if ttl <= 0 {
		ttl = loginSessionTTL
	}
	return &loginSessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]loginSessionEntry),
	}
}

func (s *loginSessionStore) purgeExpiredLocked(now time.Time) {
	for id, entry := range s.sessions {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

func (s *loginSessionStore) Register(session *cursor.LoginSession) {
	if session == nil || strings.TrimSpace(session.UUID) == "" {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.sessions)
	s.sessions[session.UUID] = loginSessionEntry{
		Session:   session,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
}

func (s *loginSessionStore) Get(id string) (*cursor.LoginSession, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return entry.Session, true
}

func (s *loginSessionStore) Complete(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
