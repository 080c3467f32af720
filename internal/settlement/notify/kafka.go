package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radieske/esports-wager-settlement/internal/shared/kafka"
)

// Kafka espelha as notificações no tópico settlement_events, particionado pela key
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(w *kafka.Writer) *Kafka { return &Kafka{w: w} }

func (k *Kafka) Publish(ctx context.Context, topic string, payload any) error {
	env, err := NewEnvelope(topic, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := kafka.WriteJSON(ctx, k.w, env.Key, b); err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}
