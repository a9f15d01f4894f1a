package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/database/dbtest"
	"brainpulse/internal/repository"
	"brainpulse/internal/security"
	"brainpulse/internal/validation"
)

type fakeMailer struct {
	mu          sync.Mutex
	welcomed    []string
	resetTokens map[string]string
}

func (m *fakeMailer) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetTokens == nil {
		m.resetTokens = make(map[string]string)
	}
	m.resetTokens[toEmail] = resetToken
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomed = append(m.welcomed, toEmail)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeMailer) {
	t.Helper()
	db := dbtest.New(t)
	mailer := &fakeMailer{}
	svc := NewAuthService(repository.NewUserRepository(db), security.NewTokenIssuer("test-secret"), mailer, time.Hour)
	return svc, mailer
}

func TestRegisterAndLogin(t *testing.T) {
	svc, mailer := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, " Ada@Example.com ", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.True(t, res.User.IsAdmin, "first account is admin")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, []string{"ada@example.com"}, mailer.welcomed)

	second, err := svc.Register(ctx, "grace@example.com", "correct horse", "Grace")
	require.NoError(t, err)
	assert.False(t, second.User.IsAdmin)

	_, err = svc.Register(ctx, "ADA@example.com", "another pass", "Ada Two")
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
	assert.NotEqual(t, res.Session.ID, login.Session.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture(t)

	tests := []struct {
		email, password, name, field string
	}{
		{"not-an-email", "correct horse", "Ada", "email"},
		{"ada@example.com", "short", "Ada", "password"},
		{"ada@example.com", "correct horse", " ", "name"},
	}
	for _, tt := range tests {
		_, err := svc.Register(context.Background(), tt.email, tt.password, tt.name)
		var fe *validation.FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, tt.field, fe.Field)
	}
}

func TestValidateTokenAndLogout(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	user, sessionID, err := svc.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)
	assert.Equal(t, res.Session.ID, sessionID)

	user, err = svc.ValidateSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	require.NoError(t, svc.Logout(ctx, sessionID))
	_, _, err = svc.ValidateToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = svc.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestSessionExpiry(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateSession(ctx, res.Session.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The expired session was removed on access
	_, err = svc.ValidateSession(ctx, res.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	n, err := svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOAuthLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	created, err := svc.OAuthLogin(ctx, "google", "sub-1", "new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "new", created.User.Name)
	assert.Equal(t, "google", created.User.OAuthProvider)

	again, err := svc.OAuthLogin(ctx, "google", "sub-1", "new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, again.User.ID)

	// Password accounts are linked on first OAuth login
	local, err := svc.Register(ctx, "local@example.com", "correct horse", "Local")
	require.NoError(t, err)
	linked, err := svc.OAuthLogin(ctx, "facebook", "fb-9", "local@example.com", "Local")
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, linked.User.ID)

	// Another provider cannot take over a linked email
	_, err = svc.OAuthLogin(ctx, "google", "sub-2", "local@example.com", "Local")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.OAuthLogin(ctx, "", "x", "a@example.com", "")
	assert.Error(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, mailer := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.resetTokens)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	token := mailer.resetTokens["ada@example.com"]
	require.Len(t, token, 64)

	ok, err := svc.ValidatePasswordResetToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	var fe *validation.FieldError
	require.ErrorAs(t, svc.ResetPassword(ctx, token, "short"), &fe)

	require.NoError(t, svc.ResetPassword(ctx, token, "battery staple"))
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "battery staple 2"), ErrInvalidResetToken)

	_, err = svc.ValidateSession(ctx, res.Session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "reset signs out everywhere")

	_, err = svc.Login(ctx, "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ada@example.com", "battery staple")
	assert.NoError(t, err)

	ok, err = svc.ValidatePasswordResetToken(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordResetTokenExpires(t *testing.T) {
	svc, mailer := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	token := mailer.resetTokens["ada@example.com"]

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "battery staple"), ErrInvalidResetToken)

	n, err := svc.CleanupExpiredPasswordResetTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
