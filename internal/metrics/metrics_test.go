package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCorrection(t *testing.T) {
	m := New()
	m.ObserveCorrection("ok", true, time.Millisecond)
	m.ObserveCorrection("ok", true, time.Millisecond)
	m.ObserveCorrection("invalid_relationship", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.corrections.WithLabelValues("ok", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.corrections.WithLabelValues("invalid_relationship", "false")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("/cypher/correct", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cypherguard_http_requests_total{path="/cypher/correct",status="200"} 1`)
}
