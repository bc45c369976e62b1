package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
)

// RequireAction rejects the request unless the caller may perform an
// action that has no target resource, such as the admin incident listing.
// Routes whose target may not exist must leave the check to the service so
// a missing target is reported first.
func RequireAction(action auth.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := auth.Authorize(CallerFrom(c), action, auth.Resource{})
			if d.Allowed {
				return next(c)
			}
			if errors.Is(d.Err(), apperr.ErrUnauthenticated) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": d.Reason})
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": d.Reason})
		}
	}
}
