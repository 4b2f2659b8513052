// Package metrics holds the Prometheus collectors shared by the HTTP layer and the engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lending_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	LoansIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_loans_issued_total",
		Help: "Loans created, by origin (request or direct).",
	}, []string{"origin"})

	ItemsReturned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_items_returned_total",
		Help: "Returned tool items by resulting tool status.",
	}, []string{"status"})

	LeadChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_department_lead_changes_total",
		Help: "Department lead pointer changes by reason.",
	}, []string{"reason"})
)
