package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// ViewCache guarda a visão agregada de cada wager no Redis com TTL
type ViewCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *ViewCache { return &ViewCache{R: r, TTL: ttl} }

func keyView(wagerID string) string { return "wager:view:" + wagerID }

func (c *ViewCache) Get(ctx context.Context, wagerID string) (*domain.WagerView, bool, error) {
	b, err := c.R.Get(ctx, keyView(wagerID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v domain.WagerView
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

func (c *ViewCache) Set(ctx context.Context, v domain.WagerView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyView(v.WagerID), b, c.TTL).Err()
}

func (c *ViewCache) Invalidate(ctx context.Context, wagerID string) error {
	return c.R.Del(ctx, keyView(wagerID)).Err()
}
