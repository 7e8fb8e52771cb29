package middleware

import (
	"net/http"

	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// Prometheus instruments requests with the default http metrics recorder.
// The /metrics endpoint itself is registered by the server when metrics are
// enabled.
func Prometheus(next http.Handler) http.Handler {
	mdlw := httpmetrics.New(httpmetrics.Config{
		Recorder: metrics.NewRecorder(metrics.Config{}),
	})

	return std.Handler("", mdlw, next)
}
