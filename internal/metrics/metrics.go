package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_check_ins_total",
			Help: "Habit check-ins by outcome",
		},
		[]string{"outcome"},
	)
	StreakRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_streak_repairs_total",
			Help: "Stale streaks repaired on list, by outcome",
		},
		[]string{"outcome"},
	)
	ChallengeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_events_total",
			Help: "Challenge score transitions by outcome",
		},
		[]string{"outcome"},
	)
	TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_tx_retries_total",
			Help: "Transactions retried after a conflict",
		},
	)
	EffectsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "effects_processed_total",
			Help: "Side effects processed by the effect dispatcher",
		},
		[]string{"kind", "result"},
	)
	EffectQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "effects_pending",
			Help: "Side effects enqueued and not yet finished",
		},
	)
)

// Register adds every domain collector to reg. Call this once from main.go.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		CheckIns,
		StreakRepairs,
		ChallengeEvents,
		TxRetries,
		EffectsProcessed,
		EffectQueueDepth,
	)
}
