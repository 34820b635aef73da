package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amansour/techsouk/internal/auth"
	"github.com/amansour/techsouk/internal/repository"
	"github.com/amansour/techsouk/internal/session"
)

var (
	// ErrInvalidCredentials is returned when login fails. The message is
	// deliberately the same for unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

const minPasswordLength = 8

// AccountService handles registration, login, token verification, and
// logout. It implements auth.Verifier: a token is only valid while its
// server-side session row exists, so logout revokes outstanding tokens.
type AccountService struct {
	users    repository.UserRepository
	jwt      *auth.JWTManager
	sessions *session.Store
	logger   *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(users repository.UserRepository, jwt *auth.JWTManager, sessions *session.Store, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:    users,
		jwt:      jwt,
		sessions: sessions,
		logger:   logger,
	}
}

// Register creates a new account
func (s *AccountService) Register(ctx context.Context, email, password string) (*repository.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies credentials, opens a session, and issues a token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *repository.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !auth.VerifyPassword(password, user.PasswordHash, user.PasswordSalt) {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	sess := &repository.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.jwt.Expiry()),
	}
	if err := s.users.CreateSession(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		// Non-fatal: login still succeeds
		s.logger.Warn("failed to update last login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()))
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, sess.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("session_id", sess.ID.String()))
	return token, user, nil
}

// Verify validates a token's signature and checks the session row is still
// live. Implements auth.Verifier.
func (s *AccountService) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	userID, err := claims.GetUserID()
	if err != nil {
		return nil, err
	}
	sessionID, err := claims.GetSessionID()
	if err != nil {
		return nil, err
	}

	sess, err := s.users.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, auth.ErrExpiredToken
	}

	return &auth.Identity{
		UserID:    userID,
		Email:     claims.Email,
		SessionID: sessionID,
	}, nil
}

// Logout deletes the session row and discards the session's UI state.
// Already-deleted sessions are treated as logged out.
func (s *AccountService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.users.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.sessions.ClearSession(sessionID.String())
	return nil
}

// CleanupExpiredSessions removes expired session rows. Intended to be run
// periodically by the server.
func (s *AccountService) CleanupExpiredSessions(ctx context.Context) {
	deleted, err := s.users.DeleteExpiredSessions(ctx)
	if err != nil {
		s.logger.Warn("failed to clean up expired sessions", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("cleaned up expired sessions", slog.Int64("deleted", deleted))
	}
}

// Ensure AccountService implements the verifier used by the HTTP middleware
var _ auth.Verifier = (*AccountService)(nil)
