package api

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Options configures the public API.
type Options struct {
	RateLimitPerMinute int
}

// SetupRoutes registers middleware and the /api/v1 routes on app.
func SetupRoutes(app *fiber.App, deps *Dependencies, opts Options) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(AccessLogMiddleware(deps.Logger))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	if opts.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	v1 := app.Group("/api/v1")
	v1.Post("/analyze", AnalyzeHandler(deps))
	v1.Get("/analysis/current", CurrentHandler(deps))
	v1.Get("/axes", AxesHandler(deps))
	v1.Get("/cities", CitiesHandler())
	v1.Get("/datasets", DatasetsHandler())
	v1.Post("/ask", AskHandler(deps))
}

// Server is the public Fiber API.
type Server struct {
	app       *fiber.App
	addr      string
	listening atomic.Bool
	deps      *Dependencies
}

// NewServer builds the Fiber app and registers routes.
func NewServer(addr string, deps *Dependencies, opts Options) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             64 * 1024,
		AppName:               "EJ Indicator API",
		DisableStartupMessage: true,
	})
	s := &Server{app: app, addr: addr, deps: deps}
	app.Hooks().OnListen(func(fiber.ListenData) error {
		s.listening.Store(true)
		return nil
	})
	SetupRoutes(app, deps, opts)
	return s
}

// App exposes the underlying Fiber app, useful for testing.
func (s *Server) App() *fiber.App { return s.app }

// Start begins listening and blocks until shutdown.
func (s *Server) Start() error {
	s.deps.Logger.Info("api server starting", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.listening.Store(false)
	return s.app.ShutdownWithContext(ctx)
}

// CheckReadiness reports whether the API listener is up.
func (s *Server) CheckReadiness(_ context.Context) error {
	if !s.listening.Load() {
		return errors.New("api server is not listening")
	}
	return nil
}
