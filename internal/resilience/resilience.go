// Package resilience содержит повтор с экспоненциальной задержкой и
// предохранитель для вызовов внешних API.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Config параметры повторов.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig значения для платёжного провайдера.
var DefaultConfig = Config{MaxRetries: 2, InitialBackoff: 200 * time.Millisecond}

// Permanent помечает ошибку, которую нет смысла повторять.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// RetryWithBackoff выполняет fn с экспоненциальной задержкой и джиттером,
// прерываясь при отмене контекста или постоянной ошибке.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p, ok := lastErr.(*Permanent); ok {
			return p.Err
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			wait := backoff
			if half := int64(backoff / 2); half > 0 {
				wait += time.Duration(rand.Int63n(half))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// NewCircuitBreaker создаёт предохранитель с настройками по умолчанию.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// клиентские ошибки не должны размыкать цепь
			_, permanent := err.(*Permanent)
			return err == nil || permanent
		},
	})
}

// Call выполняет fn через предохранитель с повторами.
func Call[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, cfg Config, fn func() (T, error)) (T, error) {
	var out T
	err := RetryWithBackoff(ctx, cfg, func() error {
		res, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return &Permanent{Err: err}
			}
			return err
		}
		out = res.(T)
		return nil
	})
	return out, err
}
