package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/database"
	"brainpulse/internal/models"
	"brainpulse/internal/repository"
	"brainpulse/internal/security"
	"brainpulse/internal/validation"
)

const passwordResetTTL = time.Hour

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// Mailer sends account emails
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}

// AuthResult is a freshly started session with its bearer token
type AuthResult struct {
	User    *models.User
	Session *models.Session
	Token   string
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo        *repository.UserRepository
	tokens          *security.TokenIssuer
	mailer          Mailer
	sessionDuration time.Duration
	now             func() time.Time
}

// NewAuthService creates a new auth service. mailer may be nil.
func NewAuthService(userRepo *repository.UserRepository, tokens *security.TokenIssuer, mailer Mailer, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		tokens:          tokens,
		mailer:          mailer,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// Register creates a new user account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, email, passwordHash, name)
	if errors.Is(err, database.ErrUniqueViolation) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send welcome email")
		}
	}

	return s.startSession(ctx, user)
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	sessionID := security.GenerateSessionID()
	expiresAt := s.now().Add(s.sessionDuration)

	session, err := s.userRepo.CreateSession(ctx, sessionID, user.ID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, session.ID, expiresAt)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Session: session, Token: token}, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := s.userRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
			log.WithError(err).Warn("Failed to delete expired session")
		}
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// ValidateToken checks a bearer token and the session it is bound to. It
// returns the user and the session id.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*models.User, string, error) {
	userID, sessionID, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, "", err
	}

	user, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if user.ID != userID {
		return nil, "", ErrSessionNotFound
	}
	return user, sessionID, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions and returns how many were removed
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// OAuthLogin authenticates or creates a user using an OAuth provider
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*AuthResult, error) {
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}

		if existingUser != nil {
			if existingUser.OAuthProvider != "" && existingUser.OAuthProvider != provider {
				return nil, ErrEmailTaken
			}
			if err := s.userRepo.LinkOAuthProvider(ctx, existingUser.ID, provider, subject); err != nil {
				return nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			user = existingUser
		} else {
			if name == "" {
				name = strings.Split(email, "@")[0]
			}
			// OAuth accounts get an unguessable password so only the provider can sign them in
			randomPasswordHash, err := security.HashPassword(security.GenerateSessionID())
			if err != nil {
				return nil, fmt.Errorf("failed to generate oauth password hash: %w", err)
			}
			newUser, err := s.userRepo.CreateUser(ctx, email, randomPasswordHash, name)
			if err != nil {
				return nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
			if err := s.userRepo.LinkOAuthProvider(ctx, newUser.ID, provider, subject); err != nil {
				return nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			newUser.OAuthProvider = provider
			newUser.OAuthSubject = subject
			user = newUser
		}
	}

	return s.startSession(ctx, user)
}

// RequestPasswordReset creates a password reset token and emails it. Unknown
// addresses succeed silently so the endpoint does not reveal accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil
	}

	token, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.userRepo.DeleteUserPasswordResetTokens(ctx, user.ID); err != nil {
		return err
	}
	if err := s.userRepo.CreatePasswordResetToken(ctx, token, user.ID, s.now().Add(passwordResetTTL)); err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, token); err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
	}
	return nil
}

// ValidatePasswordResetToken checks if a reset token is usable
func (s *AuthService) ValidatePasswordResetToken(ctx context.Context, token string) (bool, error) {
	resetToken, err := s.userRepo.GetPasswordResetToken(ctx, token)
	if err != nil {
		return false, err
	}
	return resetToken != nil && !resetToken.Used && !s.now().After(resetToken.ExpiresAt), nil
}

// ResetPassword sets a new password using a valid token and signs the user
// out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	resetToken, err := s.userRepo.GetPasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if resetToken == nil || resetToken.Used || s.now().After(resetToken.ExpiresAt) {
		return ErrInvalidResetToken
	}

	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, resetToken.UserID, passwordHash); err != nil {
		return err
	}
	if err := s.userRepo.MarkPasswordResetTokenAsUsed(ctx, token); err != nil {
		return err
	}
	return s.userRepo.DeleteUserSessions(ctx, resetToken.UserID)
}

// CleanupExpiredPasswordResetTokens removes expired reset tokens
func (s *AuthService) CleanupExpiredPasswordResetTokens(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteExpiredPasswordResetTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reset tokens: %w", err)
	}
	return n, nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
