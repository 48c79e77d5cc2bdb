package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healme",
			Subsystem: "chat",
			Name:      "tier_attempts_total",
			Help:      "Backend calls per operation, endpoint tier and outcome.",
		},
		[]string{"op", "tier", "outcome"},
	)

	DegradedRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healme",
		Subsystem: "chat",
		Name:      "degraded_refreshes_total",
		Help:      "Refreshes that fell back to the mock conversation.",
	})

	LocalEchoes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healme",
		Subsystem: "chat",
		Name:      "local_echoes_total",
		Help:      "Messages kept only locally because every send endpoint failed.",
	})

	PollTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healme",
		Subsystem: "chat",
		Name:      "poll_ticks_total",
		Help:      "Periodic refresh ticks across all engines.",
	})

	ActiveEngines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healme",
		Subsystem: "chat",
		Name:      "active_engines",
		Help:      "Engines currently held by the registry.",
	})
)

// Register adds every collector to reg. Already registered collectors are not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{TierAttempts, DegradedRefreshes, LocalEchoes, PollTicks, ActiveEngines} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Outcome maps a tier result to the outcome label.
func Outcome(err error, notFound bool) string {
	switch {
	case err == nil:
		return "ok"
	case notFound:
		return "not_found"
	default:
		return "error"
	}
}
