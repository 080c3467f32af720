package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/esports-wager-settlement/internal/settlement/service"
	"github.com/radieske/esports-wager-settlement/internal/shared/kafka"
)

// Queue enfileira conclusões de partida para o settlement-worker
type Queue struct {
	Writer MessageWriter
}

func NewQueue(w MessageWriter) *Queue { return &Queue{Writer: w} }

func (q *Queue) Enqueue(ctx context.Context, in service.MatchConcludedInput) error {
	ev := in.Event()
	ev.RequestedAt = time.Now().UTC()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return q.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Key()), Value: b, Time: ev.RequestedAt})
}
