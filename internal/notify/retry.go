package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy описывает повторы отправки: экспоненциальная задержка
// и растущий таймаут на каждую попытку
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BaseTimeout time.Duration
	TimeoutStep time.Duration
	MaxTimeout  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    16 * time.Second,
		BaseTimeout: 10 * time.Second,
		TimeoutStep: 5 * time.Second,
		MaxTimeout:  30 * time.Second,
	}
}

// AttemptTimeout возвращает таймаут попытки (нумерация с нуля)
func (p RetryPolicy) AttemptTimeout(attempt int) time.Duration {
	t := p.BaseTimeout + time.Duration(attempt)*p.TimeoutStep
	if p.MaxTimeout > 0 && t > p.MaxTimeout {
		t = p.MaxTimeout
	}
	return t
}

// Retry выполняет op до MaxAttempts раз. Постоянные ошибки и отмена ctx прерывают повторы.
func Retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}

	attempt := 0
	operation := func() error {
		timeout := p.AttemptTimeout(attempt)
		attempt++
		if timeout <= 0 {
			return op(ctx)
		}
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(actx)
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
