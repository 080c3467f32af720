package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher é o contrato de saída do motor: publish(topic, payload)
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Envelope é o formato que trafega no Redis e no Kafka.
// Key vem de payload.Key() quando disponível.
type Envelope struct {
	Topic   string          `json:"topic"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
	Ts      time.Time       `json:"ts"`
}

type keyed interface{ Key() string }

func NewEnvelope(topic string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	env := Envelope{Topic: topic, Payload: b, Ts: time.Now().UTC()}
	if k, ok := payload.(keyed); ok {
		env.Key = k.Key()
	}
	return env, nil
}
