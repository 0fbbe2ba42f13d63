package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// CtxLogger is the context key of the request scoped logger.
const CtxLogger = "logger"

// RequestLogger assigns every request an id (kept from X-Request-ID when
// the client sent one), echoes it back, stores a logger carrying it under
// CtxLogger and logs one line per request once the handler returns.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			l := base.With().Str("request_id", rid).Logger()
			c.Set(CtxLogger, l)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = l.Error().Err(err)
			case status >= 400:
				ev = l.Warn()
			default:
				ev = l.Info()
			}
			ev.Str("method", req.Method).
				Str("path", c.Path()).
				Str("uri", req.RequestURI).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("actor", actor(c)).
				Str("ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}

// Logger returns the request scoped logger, or fallback outside a request.
// zerolog's level methods have pointer receivers, so the result is a
// pointer and can be chained directly.
func Logger(c echo.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l, ok := c.Get(CtxLogger).(zerolog.Logger); ok {
		return &l
	}
	return &fallback
}
