package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Allowed reports whether a user with role may use a route open to required.
// Admin may use every route.
func Allowed(role string, required ...string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// RequireRole guards a route group with Allowed. Naming a role the system
// does not know is a wiring mistake and panics at startup.
func RequireRole(required ...string) echo.MiddlewareFunc {
	for _, r := range required {
		if !ValidRole(r) {
			panic(fmt.Sprintf("auth: RequireRole with unknown role %q", r))
		}
	}
	denied := "requires role " + strings.Join(required, " or ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, role := range RolesFromContext(c.Request().Context()) {
				if Allowed(role, required...) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, denied)
		}
	}
}
