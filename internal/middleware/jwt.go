package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
)

// Authenticator resolves a raw access token to the caller behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Caller, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[7:])
	return raw, raw != ""
}

// JWTAuth requires a valid access token and stores the resolved caller in
// the request context.
func JWTAuth(a Authenticator) echo.MiddlewareFunc {
	return bearer(a, true)
}

// OptionalJWTAuth resolves a caller when a token is present and lets
// anonymous requests through. A token that is present but invalid is still
// rejected.
func OptionalJWTAuth(a Authenticator) echo.MiddlewareFunc {
	return bearer(a, false)
}

func bearer(a Authenticator, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request())
			if !ok {
				if required {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
				}
				return next(c)
			}
			caller, err := a.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": tokenError(err)})
			}
			SetCaller(c, caller)
			return next(c)
		}
	}
}

func tokenError(err error) string {
	switch {
	case errors.Is(err, apperr.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, apperr.ErrTokenKindMismatch):
		return "wrong token kind"
	case errors.Is(err, apperr.ErrTokenInvalid):
		return "invalid token"
	case errors.Is(err, apperr.ErrUnauthenticated):
		return "account not found"
	}
	return "authentication failed"
}
