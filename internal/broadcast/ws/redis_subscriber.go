package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/notify"
)

// StartRedisSubscriber escuta o canal Pub/Sub do motor e repassa cada
// envelope para os clientes inscritos na chave dele
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub, onMessage func(topic string)) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env notify.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				if onMessage != nil {
					onMessage(env.Topic)
				}
				hub.Broadcast(env)
			}
		}
	}()
}
