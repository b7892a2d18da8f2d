package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

// SessionService opens and closes login sessions.
type SessionService struct {
	users    *UserService
	sessions session.Store
	logger   zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(users *UserService, sessions session.Store, logger zerolog.Logger) *SessionService {
	return &SessionService{
		users:    users,
		sessions: sessions,
		logger:   logger.With().Str("service", "session").Logger(),
	}
}

// Login authenticates the user and opens a session.
func (s *SessionService) Login(ctx context.Context, username, password string) (*session.Session, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, user)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create session")
		return nil, domain.StorageError(err, "failed to create session")
	}

	return sess, nil
}

// Logout closes a session. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete session")
		return domain.StorageError(err, "failed to delete session")
	}
	return nil
}

// Get returns the session for token.
func (s *SessionService) Get(ctx context.Context, token string) (*session.Session, error) {
	return s.sessions.Get(ctx, token)
}
