package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_ai_requests_total",
		Help: "Upstream AI calls by provider, operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_ai_request_duration_seconds",
		Help:    "Latency of upstream AI calls",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider", "operation"})
)

func observe(provider, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	requestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
