// Package provisioning — retry.go: ограниченные повторы с экспоненциальным
// backoff и джиттером для временных сбоев VPN-сервиса.
package provisioning

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy описывает параметры повторов.
type RetryPolicy struct {
	MaxAttempts int           // Всего попыток, включая первую
	BaseDelay   time.Duration // Задержка перед второй попыткой
	MaxDelay    time.Duration // Потолок задержки
	Jitter      time.Duration // Случайная добавка к каждой задержке
}

// DefaultRetryPolicy — параметры по умолчанию; боевые значения
// приходят из конфигурации.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      250 * time.Millisecond,
	}
}

// Delay возвращает задержку перед попыткой attempt (считая с 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// retry выполняет fn до первого успеха либо неретраибельной ошибки.
// Между попытками спит с учётом отмены контекста.
func retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay(attempt)):
		}
	}
	return lastErr
}
