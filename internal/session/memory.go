package session

import (
	"context"
	"sync"
	"time"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// MemoryStore keeps sessions in process memory. Expired sessions are dropped
// when read and swept on every Create.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore whose sessions last ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session for user.
func (s *MemoryStore) Create(ctx context.Context, user *domain.User) (*Session, error) {
	now := s.now()
	sess := newSession(user, s.ttl, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, existing := range s.sessions {
		if existing.Expired(now) {
			delete(s.sessions, token)
		}
	}
	s.sessions[sess.Token] = *sess

	return sess, nil
}

// Get returns a live session.
func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return nil, domain.ErrSessionNotFound
	}

	return &sess, nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// DeleteUser removes every session of userID.
func (s *MemoryStore) DeleteUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
