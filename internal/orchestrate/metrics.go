package orchestrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printflow_sessions_completed_total",
		Help: "Print sessions that finished successfully.",
	})
	sessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printflow_sessions_failed_total",
		Help: "Print sessions that reached a failed state.",
	})
	sessionsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printflow_sessions_cancelled_total",
		Help: "Print sessions cancelled before reaching a terminal state.",
	})
	jobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printflow_jobs_dispatched_total",
		Help: "Print jobs submitted to the remote print service.",
	})
	fallbackOffers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printflow_fallback_offers_total",
		Help: "Browser fallback offers presented to users.",
	})
)
