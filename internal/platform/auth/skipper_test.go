package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func routeContext(method, pattern string) echo.Context {
	c := echo.New().NewContext(httptest.NewRequest(method, "/", nil), httptest.NewRecorder())
	c.SetPath(pattern)
	return c
}

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		method, pattern string
		public          bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/health/db", true},
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodGet, "/api/v1/auth/login", false},
		{http.MethodPost, "/health", false},
		{http.MethodPost, "/api/v1/auth/logout", false},
		{http.MethodGet, "/api/v1/patients", false},
		{http.MethodGet, "/api/v1/audit", false},
		{http.MethodGet, "/health/extra", false},
		{http.MethodGet, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.public, AuthSkipper(routeContext(tt.method, tt.pattern)))
			assert.Equal(t, tt.public, IsPublicRoute(tt.method, tt.pattern))
		})
	}
}

func TestJWTMiddleware_SkipsPublicRoutes(t *testing.T) {
	called := false
	h := JWTMiddleware(newTestSessions(t), nil, zerolog.Nop())(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	assert.NoError(t, h(routeContext(http.MethodPost, "/api/v1/auth/login")))
	assert.True(t, called, "login must run without a token")

	called = false
	err := h(routeContext(http.MethodGet, "/api/v1/auth/login"))
	assert.Error(t, err)
	assert.False(t, called)
}
