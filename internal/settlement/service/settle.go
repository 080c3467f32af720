package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/topics"
)

// WagerSettlement resume o que aconteceu com um wager na liquidação
type WagerSettlement struct {
	WagerID string          `json:"wagerId"`
	Result  domain.Result   `json:"result,omitempty"`
	Payouts int             `json:"payouts"`
	Paid    decimal.Decimal `json:"paid"`
	Review  string          `json:"review,omitempty"`
	Skipped bool            `json:"skipped,omitempty"` // já liquidado por outra execução
	Error   string          `json:"error,omitempty"`
}

// SettleEvent liquida todos os wagers abertos (bettable ou ongoing) do evento
// encerrado. Wagers são independentes: a falha de um não interrompe os demais.
func (e *Engine) SettleEvent(ctx context.Context, o *domain.Outcome) ([]WagerSettlement, error) {
	wagers, err := e.Store.ListWagersByEvent(ctx, o.Event)
	if err != nil {
		return nil, err
	}
	var open []*domain.Wager
	for _, w := range wagers {
		if w.Status == domain.WagerBettable || w.Status == domain.WagerOngoing {
			open = append(open, w)
		}
	}

	out := make([]WagerSettlement, len(open))
	var g errgroup.Group
	g.SetLimit(max(e.Parallelism, 1))
	for i, w := range open {
		i, w := i, w
		g.Go(func() error {
			out[i] = e.settleWager(ctx, w, o)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (e *Engine) settleWager(ctx context.Context, w *domain.Wager, o *domain.Outcome) WagerSettlement {
	log := e.Log.With(zap.String("wager_id", w.ID), zap.String("event", o.Event.String()))
	res := WagerSettlement{WagerID: w.ID}

	if _, err := e.closeBetting(ctx, w); err != nil {
		log.Error("close betting failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}

	result, err := domain.Evaluate(w.Predicate, o)
	if err != nil {
		if errors.Is(err, domain.ErrPredicateEvaluation) {
			res.Review = err.Error()
			e.flag(ctx, w.ID, res.Review, "predicate_evaluation")
			return res
		}
		log.Error("predicate evaluation failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}

	// o check-and-set para ended garante liquidação uma única vez
	var ended bool
	err = e.Retry.Do(ctx, func() error {
		var err error
		ended, err = e.Store.EndWager(ctx, w.ID, result)
		return err
	})
	if err != nil {
		log.Error("end wager failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}
	if !ended {
		res.Skipped = true
		return res
	}
	log.Info("wager ended", zap.String("result", string(result)))
	return e.payout(ctx, w.ID, result)
}

// payout credita prêmios ou estornos de um wager já encerrado e o marca como pago.
// Os créditos são idempotentes por (wager, usuário), então pode ser repetido.
func (e *Engine) payout(ctx context.Context, wagerID string, result domain.Result) WagerSettlement {
	log := e.Log.With(zap.String("wager_id", wagerID))
	res := WagerSettlement{WagerID: wagerID, Result: result}

	bets, err := e.Store.ListBets(ctx, wagerID)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	var payouts []domain.Payout
	switch result {
	case domain.ResultVoid:
		payouts = domain.CalculateRefunds(bets)
	case domain.ResultAgree, domain.ResultDisagree:
		winning := domain.SideAgree
		if result == domain.ResultDisagree {
			winning = domain.SideDisagree
		}
		payouts, err = domain.CalculatePayouts(bets, winning)
		if errors.Is(err, domain.ErrEmptyWinningPool) {
			if len(bets) > 0 {
				res.Review = err.Error()
				e.flag(ctx, wagerID, res.Review, "empty_winning_pool")
				return res
			}
			err = nil
		}
		if err != nil {
			res.Error = err.Error()
			return res
		}
	default:
		res.Error = domain.InvalidTransitionf("wager %s has no result", wagerID).Error()
		return res
	}

	for _, p := range payouts {
		p.WagerID = wagerID
		var applied bool
		err := e.Retry.Do(ctx, func() error {
			var err error
			applied, err = e.Store.CreditPayout(ctx, p)
			return err
		})
		if err != nil {
			// fica sem paidOut; a recuperação retoma daqui
			log.Error("credit payout failed", zap.String("user_id", p.UserID), zap.Error(err))
			res.Error = err.Error()
			return res
		}
		res.Payouts++
		res.Paid = res.Paid.Add(p.Amount)
		if applied {
			if e.Hooks.OnPayout != nil {
				e.Hooks.OnPayout(p.Kind)
			}
			e.publishUser(ctx, p.UserID, string(p.Kind), wagerID)
		}
	}

	if err := e.Store.MarkPaidOut(ctx, wagerID); err != nil {
		log.Error("mark paid out failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}
	if e.Hooks.OnWagerSettled != nil {
		e.Hooks.OnWagerSettled(result)
	}
	log.Info("wager paid out",
		zap.String("result", string(result)),
		zap.Int("payouts", res.Payouts),
		zap.String("paid", res.Paid.String()))

	e.invalidate(ctx, wagerID)
	if w, err := e.Store.GetWager(ctx, wagerID); err == nil {
		e.publish(ctx, topics.WagerUpdated, wagerUpdated(w, e.Now()))
		e.publish(ctx, topics.WagerSettled, events.WagerSettled{
			WagerID:     w.ID,
			Event:       w.EventRef.String(),
			Result:      string(result),
			Payouts:     res.Payouts,
			PaidCredits: res.Paid,
			Ts:          e.Now(),
		})
	}
	return res
}

// flag marca o wager para revisão manual; ele deixa de ser liquidado automaticamente
func (e *Engine) flag(ctx context.Context, wagerID, reason, label string) {
	e.Log.Warn("wager flagged for review", zap.String("wager_id", wagerID), zap.String("reason", reason))
	if err := e.Store.FlagForReview(ctx, wagerID, reason); err != nil {
		e.Log.Error("flag for review failed", zap.String("wager_id", wagerID), zap.Error(err))
	}
	if e.Hooks.OnReview != nil {
		e.Hooks.OnReview(label)
	}
	e.invalidate(ctx, wagerID)
}
