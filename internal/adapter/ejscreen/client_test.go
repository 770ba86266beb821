package ejscreen

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ejscreenmapperAPI.aspx", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "41.8781,-87.6298", q.Get("namestr"))
		assert.Equal(t, `{"rings":[[[-87.6298,41.8781]]]}`, q.Get("geometry"))
		assert.Equal(t, "1", q.Get("distance"))
		assert.Equal(t, "miles", q.Get("unit"))
		assert.Equal(t, "4326", q.Get("out_sr"))
		assert.Equal(t, "json", q.Get("f"))

		_, _ = w.Write([]byte(`{"features":[{"attributes":{
			"ACSTOTPOP": 2140, "ASTHMARATE": 9.7, "PMTOTAL": "74.4", "RESP": 61,
			"TRAFFIC": 82.2, "LINGISO": 47, "DEMOGIDX_1": 52.5, "DEMOGIDX_2": 71, "POPDEN": 4610.4}}]}`))
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).Fetch(context.Background(), 41.8781, -87.6298)
	require.NoError(t, err)

	assert.Equal(t, domain.SchemaScreening, rec.Schema)
	assert.Equal(t, 10.0, rec.Get(domain.AsthmaScore))
	assert.Equal(t, 74.0, rec.Get(domain.PMScore))
	assert.Equal(t, 61.0, rec.Get(domain.DiseaseScore))
	assert.Equal(t, 82.0, rec.Get(domain.TrafficScore))
	assert.Equal(t, 47.0, rec.Get(domain.LowIncomeScore))
	assert.Equal(t, 71.0, rec.Get(domain.PercentPersonOfColor))
	assert.Equal(t, 53.0, rec.Get(domain.PercentLowIncome))
	assert.Equal(t, 71.0, rec.Get(domain.PercentMinority))
	assert.Equal(t, 4610.0, rec.Get(domain.PopulationDensity))
}

func TestClient_Fetch_UnpopulatedBlockZeroesAsthma(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"features":[{"attributes":{"ACSTOTPOP":0,"ASTHMARATE":12}}]}`)

	rec, err := testClient(srv.URL).Fetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Get(domain.AsthmaScore))
	assert.Len(t, rec.Values, len(domain.SchemaScreening.Axes()))
}

func TestClient_Fetch_Malformed(t *testing.T) {
	for _, body := range []string{`{"features":[]}`, `{}`, `{"features":[{}]}`} {
		t.Run(body, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			_, err := testClient(srv.URL).Fetch(context.Background(), 1, 2)
			assert.Equal(t, domain.ReasonMalformed, domain.ReasonFor(err))
		})
	}
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "oops")

	_, err := testClient(srv.URL).Fetch(context.Background(), 1, 2)
	assert.Equal(t, domain.ReasonTransport, domain.ReasonFor(err))
}
