package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/ej-indicator-service/internal/adapter/upstream"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

const upstreamLabel = "nominatim"

// Client implements domain.Resolver using an OpenStreetMap Nominatim search endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. Nominatim's usage policy
// requires an identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: upstream.NewHTTPClient(timeout),
		metrics:    metrics,
		logger:     logger,
	}
}

// Resolve geocodes query to its first candidate. Zero candidates yield
// domain.ErrNotFound.
func (c *Client) Resolve(ctx context.Context, query domain.LocationQuery) (domain.ResolvedLocation, error) {
	params := url.Values{
		"q":      {query.String()},
		"format": {"json"},
		"limit":  {"1"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	start := time.Now()
	loc, err := c.doRequest(ctx, fullURL)
	c.metrics.UpstreamDuration.WithLabelValues(upstreamLabel).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamRequests.WithLabelValues(upstreamLabel, domain.Outcome(err)).Inc()
	if err != nil {
		c.logger.Debug("geocode failed", "query", query.String(), "error", err)
		return domain.ResolvedLocation{}, err
	}
	return loc, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.ResolvedLocation, error) {
	var candidates []candidate
	header := http.Header{"User-Agent": {c.userAgent}}
	if err := upstream.GetJSON(ctx, c.httpClient, "geocode", fullURL, header, &candidates); err != nil {
		return domain.ResolvedLocation{}, err
	}
	if len(candidates) == 0 {
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}
	return candidates[0].toLocation()
}

// Nominatim API response types.

type candidate struct {
	DisplayName string          `json:"display_name"`
	Lat         json.RawMessage `json:"lat"` // usually a string, e.g. "41.8755616"
	Lon         json.RawMessage `json:"lon"`
}

func (c candidate) toLocation() (domain.ResolvedLocation, error) {
	if strings.TrimSpace(c.DisplayName) == "" {
		return domain.ResolvedLocation{}, malformed("candidate has no display_name")
	}
	lat, ok := domain.NumberFromJSON(c.Lat)
	if !ok {
		return domain.ResolvedLocation{}, malformed(fmt.Sprintf("unparsable lat %s", c.Lat))
	}
	lon, ok := domain.NumberFromJSON(c.Lon)
	if !ok {
		return domain.ResolvedLocation{}, malformed(fmt.Sprintf("unparsable lon %s", c.Lon))
	}
	geo, err := domain.NewGeo(lat, lon)
	if err != nil {
		return domain.ResolvedLocation{}, malformed(err.Error())
	}
	return domain.NewResolvedLocation(c.DisplayName, geo), nil
}

func malformed(reason string) error {
	return &domain.MalformedResponseError{Op: "geocode", Reason: reason}
}
