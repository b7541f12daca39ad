// Package metrics holds the prometheus collectors exported by booksys.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MethodLabel  = "method"
	RouteLabel   = "route"
	CodeLabel    = "code"
	OpLabel      = "op"
	OutcomeLabel = "outcome"

	Succeeded = "succeeded"
	Failed    = "failed"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksys_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{MethodLabel, RouteLabel, CodeLabel},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booksys_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{MethodLabel, RouteLabel},
	)

	BookOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksys_book_operations_total",
			Help: "Book mutations by operation and outcome",
		},
		[]string{OpLabel, OutcomeLabel},
	)

	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksys_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{OutcomeLabel},
	)

	SessionsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booksys_sessions_pruned_total",
			Help: "Expired sessions removed by the janitor",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booksys_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	SSEClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "booksys_sse_clients",
			Help: "Connected event stream clients",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HTTPRequests,
			HTTPDuration,
			BookOps,
			Logins,
			SessionsPruned,
			RateLimited,
			SSEClients,
		)
	})
}

// Outcome maps an error to the outcome label value
func Outcome(err error) string {
	if err != nil {
		return Failed
	}
	return Succeeded
}
