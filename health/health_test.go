package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestServer(t *testing.T, db Pinger) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "playerimport_test_total"})
	reg.MustRegister(c)
	c.Inc()
	return NewServer(0, "worker-test", db, reg)
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePinger{})

	for _, path := range []string{"/health", "/healthz"} {
		rec := doGet(t, s, path)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "worker-test", body["worker_id"])
		assert.NotEmpty(t, body["timestamp"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePinger{})

	rec := doGet(t, s, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	s := newTestServer(t, &fakePinger{err: errors.New("connection refused")})

	rec := doGet(t, s, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePinger{})

	rec := doGet(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "playerimport_test_total 1")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &fakePinger{})

	rec := doGet(t, s, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
