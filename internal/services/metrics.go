package services

import "github.com/prometheus/client_golang/prometheus"

// turnsTotal counts assistant turns by outcome ("ok" or "error"). The HTTP
// collectors in the middleware package see only status codes; this counter
// survives transport changes and drives the assistant SLO.
var turnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aroma",
		Subsystem: "assistant",
		Name:      "turns_total",
		Help:      "Total number of assistant dialogue turns processed.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(turnsTotal)
}
