package nominatim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

const (
	testUserAgent     = "ej-tests/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(baseURL, testUserAgent, timeout,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Resolve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Chicago, IL", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"display_name":"Chicago, Cook County, Illinois, United States","lat":"41.8755616","lon":"-87.6244212"}]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	loc, err := c.Resolve(context.Background(), domain.LocationQuery("Chicago, IL"))
	require.NoError(t, err)

	assert.Equal(t, "Chicago", loc.DisplayName)
	assert.Equal(t, "Chicago, Cook County, Illinois, United States", loc.FullName)
	require.True(t, loc.HasCoordinates())
	assert.Equal(t, 41.8755616, loc.Geo.Lat)
	assert.Equal(t, -87.6244212, loc.Geo.Lon)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues("nominatim", "success")))
}

func TestClient_Resolve_NumericCoordinates(t *testing.T) {
	srv := serveJSON(t, `[{"display_name":"Phoenix","lat":33.4484,"lon":-112.0742}]`)

	loc, err := testClient(srv.URL, time.Second).Resolve(context.Background(), "phoenix")
	require.NoError(t, err)
	assert.Equal(t, "Phoenix", loc.DisplayName)
	assert.Equal(t, 33.4484, loc.Geo.Lat)
}

func TestClient_Resolve_NoResults(t *testing.T) {
	srv := serveJSON(t, `[]`)

	c := testClient(srv.URL, time.Second)
	_, err := c.Resolve(context.Background(), "zzz-unknown-place")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues("nominatim", "not_found")))
}

func TestClient_Resolve_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object instead of array", `{"error":"bad"}`},
		{"missing display name", `[{"lat":"1","lon":"2"}]`},
		{"missing lat", `[{"display_name":"X","lon":"2"}]`},
		{"unparsable lon", `[{"display_name":"X","lat":"1","lon":"east"}]`},
		{"out of range", `[{"display_name":"X","lat":"91","lon":"2"}]`},
		{"nan lat", `[{"display_name":"X","lat":"NaN","lon":"-87.6"}]`},
		{"infinite lon", `[{"display_name":"X","lat":"41.8","lon":"-Infinity"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, tt.body)
			_, err := testClient(srv.URL, time.Second).Resolve(context.Background(), "x")

			var me *domain.MalformedResponseError
			require.True(t, errors.As(err, &me), "got %v", err)
			assert.Equal(t, "geocode", me.Op)
		})
	}
}

func TestClient_Resolve_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`usage policy violation`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, time.Second).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, domain.ReasonTransport, domain.ReasonFor(err))
}

func TestClient_Resolve_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).Resolve(context.Background(), "x")
	assert.Equal(t, domain.ReasonTransport, domain.ReasonFor(err))
}
