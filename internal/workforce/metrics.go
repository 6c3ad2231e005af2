package workforce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workforce_transitions_total",
		Help: "State transitions by target state and outcome.",
	}, []string{"state", "outcome"})

	closedOverLimitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workforce_occupancies_closed_over_limit_total",
		Help: "Occupancies closed with a negative difference against their limit.",
	})

	shiftMarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workforce_shift_marks_total",
		Help: "Shift entry and exit marks by boundary and label.",
	}, []string{"boundary", "label"})

	overrideCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workforce_override_cache_requests_total",
		Help: "Advisor override lookups by cache result.",
	}, []string{"result"})
)
