package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Redis publica envelopes num canal Pub/Sub lido pelo broadcast-service
type Redis struct {
	r       *redis.Client
	channel string
}

func NewRedis(r *redis.Client, channel string) *Redis {
	return &Redis{r: r, channel: channel}
}

func (b *Redis) Publish(ctx context.Context, topic string, payload any) error {
	env, err := NewEnvelope(topic, payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}
