package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes bypass authentication, keyed by method and registered route
// pattern. Only the health checks and login are open.
var publicRoutes = map[string]struct{}{
	routeKey(http.MethodGet, "/health"):             {},
	routeKey(http.MethodGet, "/health/db"):          {},
	routeKey(http.MethodPost, "/api/v1/auth/login"): {},
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// AuthSkipper matches the route the request resolved to rather than its raw
// URL, so /health/../api/v1/patients or a GET on the login path stays
// protected.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, pattern string) bool {
	_, ok := publicRoutes[routeKey(method, pattern)]
	return ok
}
