package openmeteo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ej-indicator-service/internal/adapter/upstream"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

const upstreamLabel = "openmeteo"

// FieldMappings binds the canonical air-quality indicators to fields of the
// "current" block. Absent fields default to 0.
var FieldMappings = []domain.FieldMapping{
	{Indicator: domain.PM25, Field: "pm2_5"},
	{Indicator: domain.PM10, Field: "pm10"},
	{Indicator: domain.Ozone, Field: "o3"},
	{Indicator: domain.NO2, Field: "no2"},
	{Indicator: domain.SO2, Field: "so2"},
}

// Client implements domain.IndicatorSource using the Open-Meteo air quality API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo air quality client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: upstream.NewHTTPClient(timeout),
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *Client) Name() string { return upstreamLabel }

func (c *Client) Schema() domain.Schema { return domain.SchemaAirQuality }

// Fetch returns the current air-quality readings at lat/lon.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.RawIndicatorRecord, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
		"current":   {"pm10,pm2_5,o3,no2,so2"},
		"timezone":  {"auto"},
	}
	fullURL := c.baseURL + "/v1/air_quality?" + params.Encode()

	start := time.Now()
	rec, err := c.doRequest(ctx, fullURL)
	c.metrics.UpstreamDuration.WithLabelValues(upstreamLabel).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamRequests.WithLabelValues(upstreamLabel, domain.Outcome(err)).Inc()
	if err != nil {
		c.logger.Debug("air quality fetch failed", "lat", lat, "lon", lon, "error", err)
		return domain.RawIndicatorRecord{}, err
	}
	return rec, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.RawIndicatorRecord, error) {
	var resp response
	if err := upstream.GetJSON(ctx, c.httpClient, "air quality", fullURL, nil, &resp); err != nil {
		return domain.RawIndicatorRecord{}, err
	}
	if resp.Current == nil {
		return domain.RawIndicatorRecord{}, &domain.MalformedResponseError{Op: "air quality", Reason: "missing current block"}
	}
	return domain.ApplyFieldMappings(domain.SchemaAirQuality, FieldMappings, domain.LookupJSONFields(resp.Current)), nil
}

// Open-Meteo API response types.

type response struct {
	Current map[string]json.RawMessage `json:"current"`
}
