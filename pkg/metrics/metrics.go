package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRequestsTotal counts HTTP requests by route, method and status
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modserve_http_requests_total",
		Help: "Total number of HTTP requests handled by the server",
	},
	[]string{"path", "method", "status"},
)

// HTTPRequestDuration records latency distribution per route
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "modserve_http_request_duration_seconds",
		Help:    "Latency in seconds to serve individual HTTP requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"path", "method"},
)

// Admission pipeline metrics
var (
	RequestsThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modserve_requests_throttled_total",
			Help: "Requests rejected by the IP rate limiter",
		},
	)

	RequestsUnauthenticated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modserve_requests_unauthenticated_total",
			Help: "Requests rejected by the signature stage",
		},
		[]string{"reason"},
	)

	SignatureVerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modserve_signature_verify_duration_seconds",
			Help:    "Time spent verifying request signatures",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(RequestsThrottled, RequestsUnauthenticated, SignatureVerifyDuration)
}
