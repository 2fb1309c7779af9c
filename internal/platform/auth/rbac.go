package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HasRole reports whether roles contains any of want. Role names compare
// case-insensitively; the platform issues both "Counselor" and "counselor".
func HasRole(roles []string, want ...string) bool {
	for _, w := range want {
		for _, r := range roles {
			if strings.EqualFold(r, w) {
				return true
			}
		}
	}
	return false
}

// RequireRole answers 403 unless the verified token carries one of roles.
// It must run after JWTMiddleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	msg := "requires role " + strings.Join(roles, " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return echo.NewHTTPError(http.StatusForbidden, msg)
			}
			return next(c)
		}
	}
}
