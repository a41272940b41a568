package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a capability call
type Timer struct {
	start      time.Time
	metrics    *Metrics
	capability string
}

// NewTimer starts timing a capability call
func NewTimer(metrics *Metrics, capability string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, capability: capability}
}

// Stop records the call with the given outcome
func (t *Timer) Stop(outcome string) {
	t.metrics.RecordCapability(t.capability, outcome, time.Since(t.start))
}
