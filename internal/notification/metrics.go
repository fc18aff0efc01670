package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultdesk",
		Subsystem: "notification",
		Name:      "persisted_total",
		Help:      "Notifications appended to the ledger.",
	}, []string{"type"})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultdesk",
		Subsystem: "notification",
		Name:      "persist_failures_total",
		Help:      "Ledger appends that failed.",
	})

	pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultdesk",
		Subsystem: "notification",
		Name:      "push_total",
		Help:      "In-app push attempts by result.",
	}, []string{"result"})

	emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultdesk",
		Subsystem: "notification",
		Name:      "email_total",
		Help:      "Email dispatch attempts by result.",
	}, []string{"result"})

	fanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vaultdesk",
		Subsystem: "notification",
		Name:      "fanout_duration_seconds",
		Help:      "Time to resolve and deliver one notify request to all recipients.",
		Buckets:   prometheus.DefBuckets,
	})
)
