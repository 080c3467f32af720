package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/service"
	"github.com/radieske/esports-wager-settlement/internal/shared/kafka"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Cascader é o lado do motor que o worker executa
type Cascader interface {
	MatchConcluded(ctx context.Context, in service.MatchConcludedInput) (*service.Summary, error)
}

// Processor consome match_concluded e executa a cascata de liquidação.
// O offset só é confirmado depois do processamento (ou do envio para a DLQ).
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Engine Cascader
	DLQ    MessageWriter // opcional

	Retries int
	Backoff time.Duration

	OnConsumed func()       // métricas (counter++)
	OnSettled  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.Handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.onError("commit")
		}
	}
}

// Handle processa uma mensagem. Erros terminais e tentativas esgotadas vão para a DLQ.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var ev events.MatchConcluded
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.onError("decode")
		p.deadLetter(ctx, m, err)
		return
	}
	log := p.Log.With(zap.String("match_id", ev.MatchID))
	in := service.MatchConcludedFromEvent(ev)

	var err error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * p.Backoff):
			}
		}
		var sum *service.Summary
		sum, err = p.Engine.MatchConcluded(ctx, in)
		if err == nil {
			// passo da cascata que falhou é retomado na próxima chamada
			err = sum.Err()
		}
		if err == nil {
			log.Info("match settled", zap.Int("match_wagers", len(sum.Match.Wagers)))
			if p.OnSettled != nil {
				p.OnSettled()
			}
			return
		}
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			// estado gravado já decidiu o passo (ex.: torneio encerrado com outra declaração)
			log.Info("cascade conflicts with recorded state, skipping", zap.Error(err))
			return
		}
		if terminal(err) {
			break
		}
		log.Warn("match settlement failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	log.Error("match settlement failed", zap.Error(err))
	p.onError("settle")
	p.deadLetter(ctx, m, err)
}

// terminal indica erros que não mudam com nova tentativa
func terminal(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindNotFound:
		return true
	}
	return false
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: append(m.Headers,
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		),
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
