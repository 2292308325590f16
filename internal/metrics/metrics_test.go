package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLoginOutcomesCounts(t *testing.T) {
	before := testutil.ToFloat64(LoginOutcomes.WithLabelValues("LOCKED"))
	LoginOutcomes.WithLabelValues("LOCKED").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(LoginOutcomes.WithLabelValues("LOCKED")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	HTTPRequests.WithLabelValues(http.MethodGet, "/health", "200").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fieldops_http_requests_total")
}
