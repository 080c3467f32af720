package service

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
)

// Retry repete operações que falharam por contenção no storage
// (ConcurrencyConflict), com espera linear entre tentativas
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetry = Retry{Attempts: 3, Backoff: 25 * time.Millisecond}

func (r Retry) Do(ctx context.Context, fn func() error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; ; i++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) || i >= attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * r.Backoff):
		}
	}
}
