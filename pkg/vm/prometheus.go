package vm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//instructionsTotal prometheus metric.
	instructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of executed instructions",
			Name:      "instructions_total",
			Namespace: "dsovm",
		},
		[]string{"opcode"},
	)
	//callsTotal prometheus metric.
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of function calls by resolution kind",
			Name:      "calls_total",
			Namespace: "dsovm",
		},
		[]string{"kind"},
	)
	//objectsCreated prometheus metric.
	objectsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of created objects",
			Name:      "objects_created_total",
			Namespace: "dsovm",
		},
	)
	//objectsDeleted prometheus metric.
	objectsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of deleted objects",
			Name:      "objects_deleted_total",
			Namespace: "dsovm",
		},
	)
)

func init() {
	prometheus.MustRegister(
		instructionsTotal,
		callsTotal,
		objectsCreated,
		objectsDeleted,
	)
}
