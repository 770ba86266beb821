package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AccessLogMiddleware logs each request with method, path, status, latency,
// response size and request ID. Level follows the status class.
func AccessLogMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		requestID, _ := c.Locals("requestid").(string)
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.String("latency", time.Since(start).String()),
			slog.Int("bytes_out", len(c.Response().Body())),
			slog.String("request_id", requestID),
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		logger.LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)
		return err
	}
}
