package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-incident-reporting/internal/auth"
)

const callerKey = "caller"

// SetCaller stores the authenticated caller on the echo context.
func SetCaller(c echo.Context, caller *auth.Caller) { c.Set(callerKey, caller) }

// CallerFrom returns the caller stored by JWTAuth, or nil for anonymous
// requests.
func CallerFrom(c echo.Context) *auth.Caller {
	caller, _ := c.Get(callerKey).(*auth.Caller)
	return caller
}

// userID is the caller id as a string, or "guest".
func userID(c echo.Context) string {
	if caller := CallerFrom(c); caller != nil && caller.ID != 0 {
		return strconv.FormatUint(caller.ID, 10)
	}
	return "guest"
}
