package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// RecoveryReport conta o que uma varredura retomou
type RecoveryReport struct {
	Repaid  int `json:"repaid"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// Recover retoma liquidações interrompidas:
//   - wagers ended ainda não pagos refazem o pagamento (créditos idempotentes);
//   - wagers abertos cujo evento já terminou são liquidados contra o resultado gravado.
func (e *Engine) Recover(ctx context.Context) (RecoveryReport, error) {
	var rep RecoveryReport

	unpaid, err := e.Store.ListUnpaidEndedWagers(ctx)
	if err != nil {
		return rep, err
	}
	for _, w := range unpaid {
		if w.Result == domain.ResultNone {
			continue
		}
		if res := e.payout(ctx, w.ID, w.Result); res.Error != "" {
			rep.Failed++
		} else if res.Review == "" {
			rep.Repaid++
		}
	}

	outcomes := map[domain.EventRef]*domain.Outcome{}
	for _, status := range []domain.WagerStatus{domain.WagerBettable, domain.WagerOngoing} {
		wagers, err := e.Store.ListWagersByStatus(ctx, status)
		if err != nil {
			return rep, err
		}
		for _, w := range wagers {
			if w.ReviewReason != "" {
				continue
			}
			o, ok := outcomes[w.EventRef]
			if !ok {
				o = e.endedOutcome(ctx, w.EventRef)
				outcomes[w.EventRef] = o
			}
			if o == nil {
				continue
			}
			res := e.settleWager(ctx, w, o)
			switch {
			case res.Error != "":
				rep.Failed++
			case res.Review == "" && !res.Skipped:
				rep.Settled++
			}
		}
	}

	if rep != (RecoveryReport{}) {
		e.Log.Info("recovery sweep finished",
			zap.Int("repaid", rep.Repaid),
			zap.Int("settled", rep.Settled),
			zap.Int("failed", rep.Failed))
	}
	return rep, nil
}

// endedOutcome devolve o resultado gravado se o evento já terminou. Séries
// ainda abertas são recalculadas, pois um crash pode ter ocorrido entre o
// fim da partida e a gravação do progresso.
func (e *Engine) endedOutcome(ctx context.Context, ref domain.EventRef) *domain.Outcome {
	ev, err := e.loadEvent(ctx, ref)
	if err != nil {
		e.Log.Warn("recovery: load event", zap.String("event", ref.String()), zap.Error(err))
		return nil
	}
	if ev.status == domain.EventEnded {
		return ev.outcome
	}
	if ref.Level == domain.LevelSeries {
		// encerra e liquida a série se as partidas já decidem
		e.advanceSeries(ctx, ref.ID)
	}
	return nil
}

// RunRecovery executa Recover na partida e depois a cada intervalo, até ctx terminar
func (e *Engine) RunRecovery(ctx context.Context, interval time.Duration) {
	sweep := func() {
		if _, err := e.Recover(ctx); err != nil && ctx.Err() == nil {
			e.Log.Error("recovery sweep failed", zap.Error(err))
		}
	}
	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
