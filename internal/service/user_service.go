package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// SessionRevoker ends every login session of a user.
type SessionRevoker interface {
	DeleteUser(ctx context.Context, userID int64) error
}

// UserService handles user management operations.
type UserService struct {
	userRepo   repository.UserRepository
	sessions   SessionRevoker
	validate   *validator.Validate
	bcryptCost int
	logger     zerolog.Logger
}

// NewUserService creates a new UserService. A bcryptCost outside bcrypt's
// accepted range falls back to bcrypt.DefaultCost. sessions may be nil when
// no login sessions exist, as in the admin CLI.
func NewUserService(userRepo repository.UserRepository, sessions SessionRevoker, bcryptCost int, logger zerolog.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo:   userRepo,
		sessions:   sessions,
		validate:   validator.New(),
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Username string `validate:"required,min=3,max=80"`
	Email    string `validate:"omitempty,email,max=120"`
	Password string `validate:"required,min=8"`
	IsAdmin  bool
}

// Create creates a new user account. Only administrators may create users.
func (s *UserService) Create(ctx context.Context, p auth.Principal, input CreateUserInput) (*domain.User, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.create(ctx, input)
}

func (s *UserService) create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if err := s.validateCreateInput(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check username existence")
		return nil, domain.StorageError(err, "failed to check username")
	}
	if exists {
		return nil, domain.NewDomainError(domain.ErrUserAlreadyExists, "username taken", input.Username)
	}

	var email *string
	if input.Email != "" {
		exists, err = s.userRepo.ExistsByEmail(ctx, input.Email)
		if err != nil {
			s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
			return nil, domain.StorageError(err, "failed to check email")
		}
		if exists {
			return nil, domain.NewDomainError(domain.ErrUserAlreadyExists, "email taken", input.Email)
		}
		email = &input.Email
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, domain.StorageError(err, "failed to hash password")
	}

	user := domain.NewUser(input.Username, email, string(passwordHash), input.IsAdmin)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrDuplicateName) {
			s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		}
		return nil, domain.StorageError(err, "failed to create user")
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Bool("is_admin", user.IsAdmin).
		Msg("user created")

	return user, nil
}

// Authenticate verifies user credentials, records the login time and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Don't reveal whether the username exists.
			s.logger.Debug().Str("username", username).Msg("user not found during authentication")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to get user")
		return nil, domain.StorageError(err, "failed to get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Str("username", username).Msg("invalid password during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user authenticated")

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get user")
	}
	return user, nil
}

// List returns all users ordered by username.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, domain.StorageError(err, "failed to list users")
	}
	return users, nil
}

// Delete deletes a user account. Administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, p auth.Principal, userID int64) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	if p.Is(userID) {
		return domain.ErrCannotDeleteSelf
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return domain.StorageError(err, "failed to delete user")
	}

	// A deleted user must not keep acting through a live session.
	if s.sessions != nil {
		if err := s.sessions.DeleteUser(ctx, userID); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to end sessions of deleted user")
		}
	}

	s.logger.Info().Int64("user_id", userID).Str("by", p.Username).Msg("user deleted")
	return nil
}

// EnsureInitialAdmin creates an administrator when no user exists yet.
// It does nothing if users exist or no username/password is configured.
func (s *UserService) EnsureInitialAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, domain.StorageError(err, "failed to count users")
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		IsAdmin:  true,
	}); err != nil {
		return false, fmt.Errorf("failed to create initial administrator: %w", err)
	}

	s.logger.Warn().Str("username", username).Msg("initial administrator created")
	return true, nil
}

// validateCreateInput maps the first failed rule to a service error.
func (s *UserService) validateCreateInput(input CreateUserInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return domain.NewDomainError(domain.ErrInvalidInput, err.Error(), "")
	}

	switch validationErrs[0].Field() {
	case "Username":
		return ErrInvalidUsername
	case "Email":
		return ErrInvalidEmail
	case "Password":
		return ErrInvalidPassword
	default:
		return domain.NewDomainError(domain.ErrInvalidInput, validationErrs[0].Error(), "")
	}
}
