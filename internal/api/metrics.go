package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nycklar",
		Name:      "http_requests_total",
		Help:      "API requests by route pattern and status code.",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nycklar",
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	loanEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nycklar",
		Name:      "loan_events_total",
		Help:      "Loan lifecycle transitions recorded through the API.",
	}, []string{"event"})

	receiptFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nycklar",
		Name:      "receipt_files_total",
		Help:      "Receipt scans attached or removed.",
	}, []string{"action"})
)

// Loan event labels.
const (
	eventCreated  = "created"
	eventPickedUp = "picked_up"
	eventReturned = "returned"
	eventDeleted  = "deleted"
)
