package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "PairWatch/pkg/logger"
)

// RequestLogging logs every request. 5xx responses are logged at error level.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, applogger.Error(err))
			}
			if c.Response().Status >= 500 {
				l.Error("http request", fields...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
