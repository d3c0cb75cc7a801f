package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/repository"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "s3cret"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, ComparePassword("", "s3cret"), ErrInvalidCredentials)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	user := &domain.User{ID: "u1", Name: "Ana", Role: domain.RoleCoordinator}

	token, expiresAt, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, domain.RoleCoordinator, claims.Role)

	_, err = NewTokenManager("other", time.Minute).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := tm.GenerateToken(&domain.User{ID: "u1", Role: domain.RoleAgent})
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Minute).ParseToken(token)
	assert.Error(t, err)
}

func setupTestApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	users, err := repository.NewUserRepository([]domain.User{
		{ID: "u1", Name: "Ana", Username: "ana", Role: domain.RoleCoordinator},
		{ID: "u2", Name: "João", Username: "joao", Role: domain.RoleAgent},
	})
	require.NoError(t, err)
	tm := NewTokenManager("secret", time.Hour)
	mw := NewAuthMiddleware(tm, users)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Use(mw.Handle)
	app.Get("/me", func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Actor().Name)
	})
	app.Get("/coordinator", RequireRole(domain.RoleCoordinator), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tm
}

func TestAuthMiddleware(t *testing.T) {
	app, tm := setupTestApp(t)
	coordinatorToken, _, err := tm.GenerateToken(&domain.User{ID: "u1", Role: domain.RoleCoordinator})
	require.NoError(t, err)
	agentToken, _, err := tm.GenerateToken(&domain.User{ID: "u2", Role: domain.RoleAgent})
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken(&domain.User{ID: "ghost", Role: domain.RoleAdmin})
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"bad scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"unknown user", "/me", "Bearer " + ghostToken, http.StatusUnauthorized},
		{"agent ok", "/me", "Bearer " + agentToken, http.StatusOK},
		{"agent forbidden", "/coordinator", "Bearer " + agentToken, http.StatusForbidden},
		{"coordinator allowed", "/coordinator", "Bearer " + coordinatorToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
