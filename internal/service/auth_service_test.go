package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	refreshTokens    map[string]*models.RefreshToken
	revokedAll       bool
	lastLoginUpdated bool
	passwordUpdated  bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdated = true
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
		m.userByEmail.FirstLogin = false
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "medrep-api",
	})
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: string(hash),
		FullName:     "Arun Menon",
		Role:         models.RoleMR,
		Territory:    "Chennai",
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "password")}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "password"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.False(t, res.MustChangePassword)
	assert.Equal(t, models.RoleMR, res.User.Role)
	assert.Equal(t, "Chennai", res.User.Territory)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleMR, claims.Role)
}

func TestAuthServiceLoginFirstLoginForcesChange(t *testing.T) {
	user := activeUser(t, "temp-pass")
	user.FirstLogin = true
	svc := newAuthService(&mockAuthRepo{userByEmail: user})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "temp-pass"})
	require.NoError(t, err)
	assert.True(t, res.MustChangePassword)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{userByEmail: activeUser(t, "password")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{findByEmailErr: sql.ErrNoRows})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "password")
	user.Active = false
	svc := newAuthService(&mockAuthRepo{userByEmail: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "password")}
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "password"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := activeUser(t, "old-pass")
	user.FirstLogin = true
	repo := &mockAuthRepo{userByEmail: user}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "old-pass",
		NewPassword: "brand-new",
	})
	require.NoError(t, err)
	assert.True(t, repo.passwordUpdated)
	assert.True(t, repo.revokedAll)
	assert.False(t, user.FirstLogin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("brand-new")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "old-pass")}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "brand-new",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.passwordUpdated)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{userByEmail: activeUser(t, "password")})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "password"})
	require.NoError(t, err)

	other := NewAuthService(&mockAuthRepo{}, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
