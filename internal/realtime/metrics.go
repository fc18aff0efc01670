package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "vaultdesk",
	Subsystem: "realtime",
	Name:      "connections",
	Help:      "Number of live connections joined to at least one key.",
})
