package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/store"
	"github.com/phrazzld/welk/internal/stream"
)

// Status is the observable sign-in state.
type Status struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	// LoginFailed is set by a failed SignIn and cleared by the next success or SignOut.
	LoginFailed bool `json:"login_failed"`
}

// SignedIn reports whether a user is signed in.
func (s Status) SignedIn() bool {
	return s.UserID != uuid.Nil
}

// Authenticator is the sign-in port the study session is gated on.
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (uuid.UUID, error)
	SignOut(ctx context.Context)
	// Watch streams the status, starting with the current one.
	Watch(ctx context.Context) <-chan Status
}

// Service authenticates users against a UserStore.
// It tracks a single signed-in user.
type Service struct {
	users    store.UserStore
	verifier PasswordVerifier
	status   *stream.State[Status]
	logger   *slog.Logger
}

var _ Authenticator = (*Service)(nil)

// NewService creates an auth Service.
func NewService(users store.UserStore, verifier PasswordVerifier, logger *slog.Logger) *Service {
	if users == nil {
		panic("users cannot be nil")
	}
	if verifier == nil {
		panic("verifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:    users,
		verifier: verifier,
		status:   stream.NewState(Status{}),
		logger:   logger.With(slog.String("component", "auth_service")),
	}
}

// Register creates a user with a hashed password.
// Returns store.ErrUsernameExists when the name is taken, or a domain
// validation error for a bad username or password.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(username, password)
	if err != nil {
		return nil, err
	}

	hash, err := s.verifier.Hash(password)
	if err != nil {
		log.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hash
	user.Password = ""

	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, store.ErrUsernameExists) {
			log.Error("failed to create user",
				slog.String("username", user.Username),
				slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))
	return user, nil
}

// SignIn verifies the credentials and makes the user the signed-in one.
// On failure the current user is kept and LoginFailed is raised.
func (s *Service) SignIn(ctx context.Context, username, password string) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.markFailed()
		if store.IsNotFoundError(err) {
			log.Debug("sign-in for unknown user", slog.String("username", username))
			return uuid.Nil, ErrInvalidCredentials
		}
		log.Error("failed to look up user",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		s.markFailed()
		log.Debug("sign-in with wrong password", slog.String("username", username))
		return uuid.Nil, ErrInvalidCredentials
	}

	s.status.Set(Status{UserID: user.ID, Username: user.Username})
	log.Info("user signed in", slog.String("user_id", user.ID.String()))
	return user.ID, nil
}

func (s *Service) markFailed() {
	s.status.Update(func(st Status) Status {
		st.LoginFailed = true
		return st
	})
}

// SignOut clears the signed-in user.
func (s *Service) SignOut(ctx context.Context) {
	prev := s.status.Get()
	s.status.Set(Status{})
	if prev.SignedIn() {
		logger.FromContextOrDefault(ctx, s.logger).Info("user signed out",
			slog.String("user_id", prev.UserID.String()))
	}
}

// Current returns the current status.
func (s *Service) Current() Status {
	return s.status.Get()
}

// Watch implements Authenticator.
func (s *Service) Watch(ctx context.Context) <-chan Status {
	return s.status.Subscribe(ctx)
}

// Authorize checks that the user a token was issued for is the signed-in one.
func (s *Service) Authorize(userID uuid.UUID) error {
	if current := s.status.Get(); !current.SignedIn() || current.UserID != userID {
		return ErrNotSignedIn
	}
	return nil
}
