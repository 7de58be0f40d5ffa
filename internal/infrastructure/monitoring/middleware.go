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

		// FullPath keeps label cardinality bounded to registered routes.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures handler duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	handler string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, handler string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		handler: handler,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	t.metrics.RecordHandler(t.handler, status, time.Since(t.start))
}
