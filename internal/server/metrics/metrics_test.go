package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Notifier.Sent.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.Notifier.Sent))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Notifier.Sent))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	r := New()
	r.HTTP.Requests.WithLabelValues("GET", "/healthz", "200").Inc()
	r.Vault.Operations.WithLabelValues("upload").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `careconnect_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, string(body), `careconnect_vault_operations_total{action="upload"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestGatherer(t *testing.T) {
	r := New()
	r.Notifier.Cycles.Inc()

	n, err := testutil.GatherAndCount(r.Gatherer(), "careconnect_notifier_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
