package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/service"
)

func requestPaths(t *testing.T, metrics *service.MetricsService) map[string]float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	paths := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return paths
}

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/metrics"))
	router.GET("/verdicts/documents/:token", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/verdicts/documents/abc.def", "")
	serve(router, http.MethodGet, "/verdicts/documents/xyz.uvw", "")
	serve(router, http.MethodGet, "/metrics", "")
	serve(router, http.MethodGet, "/nowhere/secret-token", "")

	paths := requestPaths(t, metrics)
	assert.Equal(t, 2.0, paths["/verdicts/documents/:token"])
	assert.Equal(t, 1.0, paths[unmatchedRoute])
	assert.NotContains(t, paths, "/metrics")
	assert.NotContains(t, paths, "/nowhere/secret-token")
}

func TestMetricsWithoutServicePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(nil))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/ping", "").Code)
}
