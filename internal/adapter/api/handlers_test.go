package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
	"github.com/couchcryptid/ej-indicator-service/internal/relay"
)

// --- mocks ---

type mockAnalyzer struct {
	mu      sync.Mutex
	results []domain.AnalysisResult
	queries []domain.LocationQuery
}

func (m *mockAnalyzer) Analyze(_ context.Context, q domain.LocationQuery) domain.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	res := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	res.Query = q.String()
	return res
}

func (m *mockAnalyzer) Axes() []domain.Axis   { return domain.SchemaAirQuality.Axes() }
func (m *mockAnalyzer) Schema() domain.Schema { return domain.SchemaAirQuality }

type mockAsker struct {
	answer   relay.Answer
	err      error
	provider relay.Provider
	key      string
}

func (m *mockAsker) Ask(_ context.Context, provider relay.Provider, key, question string) (relay.Answer, error) {
	m.provider = provider
	m.key = key
	if m.err != nil {
		return relay.Answer{}, m.err
	}
	if key == "" {
		return relay.Answer{}, relay.ErrMissingKey
	}
	if strings.TrimSpace(question) == "" {
		return relay.Answer{}, relay.ErrEmptyQuestion
	}
	return m.answer, nil
}

// --- helpers ---

func liveResult(seq uint64) domain.AnalysisResult {
	return domain.AnalysisResult{
		ID:         "res-1",
		Seq:        seq,
		Location:   domain.NewResolvedLocation("Chicago, Illinois", domain.Geo{Lat: 41.88, Lon: -87.63}),
		SourceMode: domain.SourceLive,
		Schema:     domain.SchemaAirQuality,
		Provider:   "openmeteo",
	}
}

func newTestDeps(analyzer *mockAnalyzer, asker *mockAsker) *Dependencies {
	return &Dependencies{
		Analyzer: analyzer,
		Slot:     &domain.CurrentSlot{},
		Relay:    asker,
		Metrics:  observability.NewMetricsForTesting(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func setupApp(deps *Dependencies, opts Options) *Server {
	return NewServer(":0", deps, opts)
}

func doRequest(t *testing.T, srv *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- analyze ---

func TestAnalyze_StoresAndReturnsResult(t *testing.T) {
	analyzer := &mockAnalyzer{results: []domain.AnalysisResult{liveResult(1)}}
	deps := newTestDeps(analyzer, &mockAsker{})
	srv := setupApp(deps, Options{})

	resp, body := doRequest(t, srv, jsonRequest(http.MethodPost, "/api/v1/analyze", `{"location":"  Chicago "}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.AnalysisResult
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Chicago", got.Query)
	assert.Equal(t, domain.SourceLive, got.SourceMode)
	assert.Equal(t, []domain.LocationQuery{"Chicago"}, analyzer.queries)

	stored, ok := deps.Slot.Load()
	require.True(t, ok)
	assert.Equal(t, "res-1", stored.ID)
}

func TestAnalyze_RejectsEmptyLocation(t *testing.T) {
	analyzer := &mockAnalyzer{results: []domain.AnalysisResult{liveResult(1)}}
	srv := setupApp(newTestDeps(analyzer, &mockAsker{}), Options{})

	for _, body := range []string{`{"location":""}`, `{"location":"   "}`, `{}`} {
		resp, raw := doRequest(t, srv, jsonRequest(http.MethodPost, "/api/v1/analyze", body))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

		var apiErr APIError
		require.NoError(t, json.Unmarshal(raw, &apiErr))
		assert.Equal(t, "bad_request", apiErr.Code)
		assert.Equal(t, domain.ErrEmptyQuery.Error(), apiErr.Message)
	}
	assert.Empty(t, analyzer.queries, "pipeline must not run for blank input")
}

func TestAnalyze_RejectsInvalidJSON(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{results: []domain.AnalysisResult{liveResult(1)}}, &mockAsker{}), Options{})

	resp, _ := doRequest(t, srv, jsonRequest(http.MethodPost, "/api/v1/analyze", `{not json`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyze_StaleResultKeepsNewer(t *testing.T) {
	newer := liveResult(5)
	newer.ID = "newer"
	older := liveResult(3)
	older.ID = "older"
	deps := newTestDeps(&mockAnalyzer{results: []domain.AnalysisResult{older}}, &mockAsker{})
	deps.Slot.Store(newer)
	srv := setupApp(deps, Options{})

	resp, body := doRequest(t, srv, jsonRequest(http.MethodPost, "/api/v1/analyze", `{"location":"Houston"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.AnalysisResult
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "older", got.ID, "the caller still receives its own result")

	stored, _ := deps.Slot.Load()
	assert.Equal(t, "newer", stored.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(deps.Metrics.StaleResults), 0)
}

// --- current / axes / catalog ---

func TestCurrent_NotFoundBeforeAnalyze(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{})

	resp, _ := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/current", http.NoBody))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCurrent_ReturnsStoredResult(t *testing.T) {
	deps := newTestDeps(&mockAnalyzer{}, &mockAsker{})
	deps.Slot.Store(liveResult(2))
	srv := setupApp(deps, Options{})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/current", http.NoBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.AnalysisResult
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, uint64(2), got.Seq)
}

func TestAxes_ListsSchemaAxes(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/axes", http.NoBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got axesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.SchemaAirQuality, got.Schema)
	require.Len(t, got.Axes, 5)
	assert.Equal(t, domain.PM25, got.Axes[0].Indicator)
}

func TestCatalogRoutes(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{})

	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/cities", http.NoBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cities []City
	require.NoError(t, json.Unmarshal(body, &cities))
	assert.Len(t, cities, 5)

	resp, body = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/datasets", http.NoBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sets []Dataset
	require.NoError(t, json.Unmarshal(body, &sets))
	assert.Len(t, sets, 4)
}

// --- ask ---

func askRequestWith(provider, key, body string) *http.Request {
	req := jsonRequest(http.MethodPost, "/api/v1/ask", body)
	if provider != "" {
		req.Header.Set("X-Provider", provider)
	}
	if key != "" {
		req.Header.Set("X-Provider-Key", key)
	}
	return req
}

func TestAsk_Success(t *testing.T) {
	asker := &mockAsker{answer: relay.Answer{Provider: relay.ProviderGemini, Text: "PM2.5 is fine particulate matter."}}
	srv := setupApp(newTestDeps(&mockAnalyzer{}, asker), Options{})

	resp, body := doRequest(t, srv, askRequestWith("gemini", "secret", `{"question":"What is PM2.5?"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got relay.Answer
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "PM2.5 is fine particulate matter.", got.Text)
	assert.Equal(t, relay.ProviderGemini, asker.provider)
	assert.Equal(t, "secret", asker.key)
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		body     string
		err      error
		status   int
		code     string
	}{
		{"unknown provider", "openai", "k", `{"question":"q"}`, nil, http.StatusBadRequest, "bad_request"},
		{"missing key", "groq", "", `{"question":"q"}`, nil, http.StatusUnauthorized, "unauthorized"},
		{"empty question", "groq", "k", `{"question":"  "}`, nil, http.StatusBadRequest, "bad_request"},
		{"upstream failure", "mistral", "k", `{"question":"q"}`,
			&relay.UpstreamError{Provider: relay.ProviderMistral, Status: 503}, http.StatusBadGateway, "bad_gateway"},
		{"unexpected failure", "groq", "k", `{"question":"q"}`, errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{err: tt.err}), Options{})

			resp, body := doRequest(t, srv, askRequestWith(tt.provider, tt.key, tt.body))
			assert.Equal(t, tt.status, resp.StatusCode)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(body, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

// --- middleware ---

func TestRateLimit(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		resp, _ := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/axes", http.NoBody))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/axes", http.NoBody))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(body), "rate_limited")
}

func TestSecurityHeaders(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{})

	resp, _ := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/cities", http.NoBody))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServer_NotReadyUntilListening(t *testing.T) {
	srv := setupApp(newTestDeps(&mockAnalyzer{}, &mockAsker{}), Options{})
	assert.Error(t, srv.CheckReadiness(context.Background()))
}
