package ejscreen

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

const upstreamLabel = "ejscreen"

// FieldMappings binds the screening indicators to EJScreen feature
// attributes. Asthma rate only counts where the block group has a population.
var FieldMappings = []domain.FieldMapping{
	{Indicator: domain.AsthmaScore, Field: "ASTHMARATE", RequiresNonZero: "ACSTOTPOP"},
	{Indicator: domain.PMScore, Field: "PMTOTAL"},
	{Indicator: domain.DiseaseScore, Field: "RESP"},
	{Indicator: domain.TrafficScore, Field: "TRAFFIC"},
	{Indicator: domain.LowIncomeScore, Field: "LINGISO"},
	{Indicator: domain.PercentPersonOfColor, Field: "DEMOGIDX_2"},
	{Indicator: domain.PercentLowIncome, Field: "DEMOGIDX_1"},
	{Indicator: domain.PercentMinority, Field: "DEMOGIDX_2"},
	{Indicator: domain.PopulationDensity, Field: "POPDEN"},
}

// Client implements domain.IndicatorSource using the EPA EJScreen mapper API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an EJScreen client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: upstream.NewHTTPClient(timeout),
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *Client) Name() string { return upstreamLabel }

func (c *Client) Schema() domain.Schema { return domain.SchemaScreening }

// Fetch returns screening percentiles for a one-mile buffer around lat/lon.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.RawIndicatorRecord, error) {
	params := url.Values{
		"namestr":  {fmt.Sprintf("%v,%v", lat, lon)},
		"geometry": {fmt.Sprintf(`{"rings":[[[%v,%v]]]}`, lon, lat)},
		"distance": {"1"},
		"unit":     {"miles"},
		"out_sr":   {"4326"},
		"f":        {"json"},
	}
	fullURL := c.baseURL + "/ejscreenmapperAPI.aspx?" + params.Encode()

	start := time.Now()
	rec, err := c.doRequest(ctx, fullURL)
	c.metrics.UpstreamDuration.WithLabelValues(upstreamLabel).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamRequests.WithLabelValues(upstreamLabel, domain.Outcome(err)).Inc()
	if err != nil {
		c.logger.Debug("screening fetch failed", "lat", lat, "lon", lon, "error", err)
		return domain.RawIndicatorRecord{}, err
	}
	return rec, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.RawIndicatorRecord, error) {
	var resp response
	if err := upstream.GetJSON(ctx, c.httpClient, "screening", fullURL, nil, &resp); err != nil {
		return domain.RawIndicatorRecord{}, err
	}
	if len(resp.Features) == 0 {
		return domain.RawIndicatorRecord{}, &domain.MalformedResponseError{Op: "screening", Reason: "no features"}
	}
	attrs := resp.Features[0].Attributes
	if attrs == nil {
		return domain.RawIndicatorRecord{}, &domain.MalformedResponseError{Op: "screening", Reason: "feature has no attributes"}
	}
	return domain.ApplyFieldMappings(domain.SchemaScreening, FieldMappings, domain.LookupJSONFields(attrs)), nil
}

// EJScreen (ArcGIS) response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
}
