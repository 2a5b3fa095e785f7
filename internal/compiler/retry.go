package compiler

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/metrics"
)

// RetryPolicy bounds collaborator retries within a single task. Retries
// never span tasks, levels or batches.
type RetryPolicy struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
}

// DefaultRetryPolicy is three attempts with exponential backoff from 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// NoRetry calls each collaborator exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// retry calls fn until it succeeds, returns a permanent error or the policy
// runs out of attempts. Context errors are never retried.
func retry[T any](ctx context.Context, p RetryPolicy, m *metrics.Collector, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn(ctx)
		m.ObserveCall(op, err)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.ObserveRetry(op)
			logger.Debug("retrying collaborator call",
				zap.String("op", op),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return v, err
}
