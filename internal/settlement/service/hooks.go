package service

import (
	"time"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/shared/metrics"
)

// MetricHooks liga os callbacks do motor aos coletores Prometheus
func MetricHooks(m *metrics.Settlement) Hooks {
	return Hooks{
		OnBetPlaced:    func(outcome string) { m.BetsPlaced.WithLabelValues(outcome).Inc() },
		OnWagerSettled: func(r domain.Result) { m.WagersSettled.WithLabelValues(string(r)).Inc() },
		OnPayout:       func(k domain.PayoutKind) { m.PayoutsCredit.WithLabelValues(string(k)).Inc() },
		OnReview:       func(reason string) { m.ReviewFlags.WithLabelValues(reason).Inc() },
		OnCascade: func(d time.Duration, err error) {
			status := "ok"
			if err != nil {
				status = string(domain.KindOf(err))
				if status == "" {
					status = "error"
				}
			}
			m.CascadeSeconds.WithLabelValues(status).Observe(d.Seconds())
		},
	}
}
