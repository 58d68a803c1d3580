package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	utterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_utterances_total",
		Help: "Utterances by outcome (submitted, completed, failed, cancelled)",
	}, []string{"outcome"})

	delayCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrator_delay_cycles_total",
		Help: "Inter-line delays started",
	})

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_state_transitions_total",
		Help: "Playback state transitions by target state",
	}, []string{"state"})

	utteranceDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrator_utterance_duration_seconds",
		Help:    "Time from submitting a line to its end notification",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)
