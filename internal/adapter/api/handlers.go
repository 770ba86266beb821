package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
	"github.com/couchcryptid/ej-indicator-service/internal/relay"
)

// Analyzer runs one location analysis. *analysis.Assembler implements it.
type Analyzer interface {
	Analyze(ctx context.Context, q domain.LocationQuery) domain.AnalysisResult
	Axes() []domain.Axis
	Schema() domain.Schema
}

// Asker relays a question to a text-generation provider. *relay.Client implements it.
type Asker interface {
	Ask(ctx context.Context, provider relay.Provider, key, question string) (relay.Answer, error)
}

// Dependencies holds what the handlers need.
type Dependencies struct {
	Analyzer Analyzer
	Slot     *domain.CurrentSlot
	Relay    Asker
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

type analyzeRequest struct {
	Location string `json:"location"`
}

type askRequest struct {
	Question string `json:"question"`
}

type axesResponse struct {
	Schema domain.Schema `json:"schema"`
	Axes   []domain.Axis `json:"axes"`
}

// AnalyzeHandler handles POST /api/v1/analyze.
func AnalyzeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req analyzeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "request body must be JSON with a location field")
		}
		q, err := domain.NewLocationQuery(req.Location)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res := deps.Analyzer.Analyze(c.UserContext(), q)
		if !deps.Slot.Store(res) {
			deps.Metrics.StaleResults.Inc()
			deps.Logger.Debug("newer analysis already stored, keeping it", "seq", res.Seq)
		}
		return c.JSON(res)
	}
}

// CurrentHandler handles GET /api/v1/analysis/current.
func CurrentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, ok := deps.Slot.Load()
		if !ok {
			return errNotFound(c, "no location has been analyzed yet")
		}
		return c.JSON(res)
	}
}

// AxesHandler handles GET /api/v1/axes.
func AxesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(axesResponse{Schema: deps.Analyzer.Schema(), Axes: deps.Analyzer.Axes()})
	}
}

// CitiesHandler handles GET /api/v1/cities.
func CitiesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(majorCities)
	}
}

// DatasetsHandler handles GET /api/v1/datasets.
func DatasetsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(datasets)
	}
}

// AskHandler handles POST /api/v1/ask. The provider key travels in the
// X-Provider-Key header and is never stored.
func AskHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provider, err := relay.ParseProvider(c.Get("X-Provider"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var req askRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "request body must be JSON with a question field")
		}

		ans, err := deps.Relay.Ask(c.UserContext(), provider, c.Get("X-Provider-Key"), req.Question)
		var upstreamErr *relay.UpstreamError
		switch {
		case err == nil:
			return c.JSON(ans)
		case errors.Is(err, relay.ErrMissingKey):
			return errUnauthorized(c, "configure a provider key first")
		case errors.Is(err, relay.ErrEmptyQuestion), errors.Is(err, relay.ErrUnknownProvider):
			return errBadRequest(c, err.Error())
		case errors.As(err, &upstreamErr):
			return errBadGateway(c, upstreamErr.Error())
		default:
			deps.Logger.Error("relay failed", "error", err)
			return errInternal(c, "relay failed")
		}
	}
}
