package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pingsTotal counts resolved pings.
	// Labels: outcome (answered, canceled, timed_out, retro, suppressed)
	pingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagtime",
		Name:      "pings_total",
		Help:      "Total pings resolved, by outcome",
	}, []string{"outcome"})

	// lateFiringsTotal counts wake-ups past the late-firing threshold.
	lateFiringsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tagtime",
		Name:      "late_firings_total",
		Help:      "Total scheduler wake-ups later than the late-firing threshold",
	})

	// ledgerWriteRetriesTotal counts failed ledger appends that were retried.
	ledgerWriteRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tagtime",
		Name:      "ledger_write_retries_total",
		Help:      "Total ledger appends retried after a write failure",
	})
)
