package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
)

// statusTable maps the error taxonomy to HTTP statuses. Order matters only
// for errors that wrap more than one sentinel.
var statusTable = []struct {
	err    error
	status int
}{
	{apperr.ErrDuplicateIdentity, http.StatusConflict},
	{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
	{apperr.ErrUnauthenticated, http.StatusUnauthorized},
	{apperr.ErrUnauthorized, http.StatusForbidden},
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrInvalidStatus, http.StatusBadRequest},
	{apperr.ErrInsufficientBalance, http.StatusBadRequest},
	{apperr.ErrTokenExpired, http.StatusUnauthorized},
	{apperr.ErrTokenInvalid, http.StatusUnauthorized},
	{apperr.ErrTokenKindMismatch, http.StatusUnauthorized},
	{apperr.ErrValidation, http.StatusBadRequest},
}

// StatusFor returns the HTTP status for err, or 500 when err is not part of
// the taxonomy.
func StatusFor(err error) int {
	for _, row := range statusTable {
		if errors.Is(err, row.err) {
			return row.status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}. Validation errors also carry the
// offending fields; unexpected errors are logged and hidden from the client.
func fail(c echo.Context, log *zap.SugaredLogger, err error) error {
	status := StatusFor(err)
	body := echo.Map{"error": err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		body["error"] = http.StatusText(status)
	}
	return c.JSON(status, body)
}
