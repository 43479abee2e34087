package tenderboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderboard_requests_total",
		Help: "Requests sent to the tender board portal by endpoint and outcome",
	}, []string{"endpoint", "status"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderboard_retries_total",
		Help: "Retry attempts by endpoint",
	}, []string{"endpoint"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderboard_retry_exhausted_total",
		Help: "Requests that failed on every allowed attempt",
	}, []string{"endpoint"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderboard_pages_total",
		Help: "Listing pages processed by result status",
	}, []string{"status"})
)
