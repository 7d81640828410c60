// Package provisioning — контракт клиента внешнего VPN-сервиса.
// Движок сверки видит только этот интерфейс; транспорт (HTTP, токены,
// форма ответов) полностью спрятан в адаптере rest.go.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status — состояние удалённого аккаунта.
type Status struct {
	ExpiresAt   time.Time // Срок действия доступа
	Enabled     bool      // Аккаунт включён
	UsedTraffic int64     // Израсходованный трафик, байты
}

// Client — операции, которые движку нужны от VPN-сервиса.
// Обычные бизнес-отказы (не найден, уже существует) возвращаются
// как ошибки-значения, паник и исключений здесь нет.
type Client interface {
	// CreateAccount заводит удалённый аккаунт и возвращает его идентификатор.
	CreateAccount(ctx context.Context, username string, initialExpiry time.Time, unlimitedTraffic bool) (string, error)
	// SetExpiry выставляет АБСОЛЮТНЫЙ срок действия.
	SetExpiry(ctx context.Context, remoteRef string, expiresAt time.Time) error
	// SetStatus включает или выключает аккаунт.
	SetStatus(ctx context.Context, remoteRef string, enabled bool) error
	// GetStatus возвращает срок, флаг включённости и трафик.
	GetStatus(ctx context.Context, remoteRef string) (*Status, error)
	// FindByUsername ищет аккаунт по логину. Нужен для идемпотентного
	// провижена: если прошлый тик упал между удалённым созданием и
	// локальной записью, следующий тик найдёт аккаунт, а не создаст второй.
	FindByUsername(ctx context.Context, username string) (ref string, found bool, err error)
}

// ErrRemoteNotFound — аккаунт, который по локальным данным должен
// существовать, на сервисе не найден. НЕ ретраится: это порча данных
// (ручное удаление на той стороне), которую должен разбирать оператор.
var ErrRemoteNotFound = errors.New("удалённый аккаунт не найден")

// UnavailableError — временный сбой сервиса (сеть, 5xx, 429).
// Ретраится с backoff; после исчерпания попыток тик по аккаунту
// откладывается до следующего запуска.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("сервис провижена недоступен: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsRetryable сообщает, имеет ли смысл повторять вызов.
func IsRetryable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
