package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	httpMetrics := newHTTPMetrics(registry, Config{ServiceName: "classbook", Environment: "test"})

	router := gin.New()
	router.Use(httpMetrics.GinMiddleware())
	router.GET("/v1/classes/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/classes/12", nil))
	}

	got := testutil.ToFloat64(httpMetrics.requests.WithLabelValues("/v1/classes/:id", http.MethodGet, "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(httpMetrics.inflight); got != 0 {
		t.Fatalf("expected no inflight requests, got %v", got)
	}
}
