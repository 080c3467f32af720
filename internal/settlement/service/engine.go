package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/store"
)

// Notifier recebe as mudanças de estado (wagers, saldos, eventos encerrados)
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// ViewCache guarda a projeção de leitura dos wagers
type ViewCache interface {
	Get(ctx context.Context, wagerID string) (*domain.WagerView, bool, error)
	Set(ctx context.Context, v domain.WagerView) error
	Invalidate(ctx context.Context, wagerID string) error
}

// Hooks são callbacks opcionais para métricas
type Hooks struct {
	OnBetPlaced    func(outcome string)
	OnWagerSettled func(result domain.Result)
	OnPayout       func(kind domain.PayoutKind)
	OnReview       func(reason string)
	OnCascade      func(d time.Duration, err error)
}

// Engine é o motor de liquidação: apostas, ciclo de vida dos wagers,
// cascata de resultados e pagamentos
type Engine struct {
	Log      *zap.Logger
	Store    store.Store
	Notifier Notifier
	Cache    ViewCache // opcional
	Hooks    Hooks
	Retry    Retry

	// Parallelism limita quantos wagers de um mesmo evento são liquidados ao mesmo tempo
	Parallelism int

	Now   func() time.Time
	NewID func() string
}

func NewEngine(log *zap.Logger, st store.Store, notifier Notifier) *Engine {
	return &Engine{
		Log:         log,
		Store:       st,
		Notifier:    notifier,
		Retry:       DefaultRetry,
		Parallelism: 4,
		Now:         func() time.Time { return time.Now().UTC() },
		NewID:       uuid.NewString,
	}
}

// publish é best effort: a notificação nunca desfaz uma mudança já gravada
func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.Publish(ctx, topic, payload); err != nil {
		e.Log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (e *Engine) invalidate(ctx context.Context, wagerID string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Invalidate(ctx, wagerID); err != nil {
		e.Log.Warn("view cache invalidate failed", zap.String("wager_id", wagerID), zap.Error(err))
	}
}
