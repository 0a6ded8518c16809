package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "companion_sessions_selected_total",
		Help: "Learning sessions created by selection runs.",
	})

	selectionSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_selection_size",
		Help:    "Items chosen per selection run.",
		Buckets: []float64{0, 1, 5, 10, 20, 30, 50},
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_practice_outcomes_total",
		Help: "Practice outcomes applied, by outcome and source.",
	}, []string{"outcome", "source"})

	annotationsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_annotations_stored_total",
		Help: "Annotations persisted by the recorder, by kind.",
	}, []string{"kind"})
)
