package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegistry(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distributor",
		Name:      "test_total",
		Help:      "Test counter.",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "distributor_test_total 3")
}
