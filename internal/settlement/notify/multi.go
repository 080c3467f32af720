package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Multi entrega para todos os destinos; a falha de um não impede os demais
type Multi struct {
	Log     *zap.Logger
	Targets []Publisher
}

func NewMulti(log *zap.Logger, targets ...Publisher) *Multi {
	return &Multi{Log: log, Targets: targets}
}

func (m *Multi) Publish(ctx context.Context, topic string, payload any) error {
	var errs error
	for _, t := range m.Targets {
		if err := t.Publish(ctx, topic, payload); err != nil {
			m.Log.Warn("notify failed", zap.String("topic", topic), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Nop descarta tudo (ambiente local sem Redis/Kafka)
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
