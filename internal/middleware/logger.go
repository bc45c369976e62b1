package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			fields := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"status", c.Response().Status,
				"latency", time.Since(start),
				"ip", c.RealIP(),
				"user", userID(c),
			}
			if status := c.Response().Status; status >= 500 {
				log.Errorw("request", append(fields, "error", err)...)
			} else {
				log.Infow("request", fields...)
			}
			return nil
		}
	}
}
