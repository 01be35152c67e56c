package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"adsim/internal/metrics"
)

// MetricsMiddleware counts requests per route template so high-cardinality
// path params stay out of the label set.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
