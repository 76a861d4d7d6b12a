package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/service"
)

type stubAuthRepo struct {
	user *models.User
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *stubAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

const testSecret = "middleware-test-secret"

func mintToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubAuthRepo{user: &models.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}}
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		AccessTokenSecret:  testSecret,
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour,
	})
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	return res.AccessToken
}

func adminOnlyRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	authService := service.NewAuthService(&stubAuthRepo{}, nil, nil, service.AuthConfig{AccessTokenSecret: testSecret})
	r := gin.New()
	grp := r.Group("/metrics", JWT(authService), RequireRoles(models.RoleAdmin))
	grp.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAdminRoutesRejectMissingToken(t *testing.T) {
	r := adminOnlyRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRejectForgedToken(t *testing.T) {
	r := adminOnlyRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRejectNonAdminRole(t *testing.T) {
	r := adminOnlyRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, models.RoleMR))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutesAllowAdmin(t *testing.T) {
	r := adminOnlyRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, models.RoleAdmin))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
