package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Label sets stay bounded: path is the registered route, never the raw URL
// (unmatched requests are reported as "unmatched").
var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vehicle_assistant",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vehicle_assistant",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency. Chat turns include model and OCR time.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vehicle_assistant",
		Name:      "http_requests_inflight",
		Help:      "HTTP requests currently being served.",
	})

	httpRequestSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vehicle_assistant",
		Name:      "http_request_size_bytes",
		Help:      "Declared request body size; dominated by photo and PDF uploads.",
		Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 9), // 1KiB..64MiB
	}, []string{"method", "path"})

	httpResponseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vehicle_assistant",
		Name:      "http_response_size_bytes",
		Help:      "HTTP response body size.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, httpInflight, httpRequestSize, httpResponseSize)
}

// Metrics records Prometheus HTTP metrics. Mount promhttp.Handler yourself.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpRequestSize.WithLabelValues(method, path).Observe(float64(n))
		}
		if n := c.Writer.Size(); n >= 0 {
			httpResponseSize.WithLabelValues(method, path).Observe(float64(n))
		}
	}
}
