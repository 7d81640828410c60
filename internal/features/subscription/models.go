// Package subscription управляет состоянием подписки на VPN-доступ.
// models.go описывает запись подписки и её статусы.
package subscription

import "time"

// Status — состояние подписки.
type Status string

const (
	// StatusUnprovisioned — аккаунт ещё ни разу не заводился на VPN-сервисе.
	// Начальное состояние; после создания удалённого аккаунта не
	// возвращается никогда.
	StatusUnprovisioned Status = "unprovisioned"
	// StatusActive — удалённый аккаунт включён, срок действия в будущем
	StatusActive Status = "active"
	// StatusSuspended — доступ отключён: на последнем тике не хватило
	// средств либо удалённый аккаунт был выключен явно
	StatusSuspended Status = "suspended"
)

// Subscription — запись подписки аккаунта.
// Мутируется только движком сверки (или административным переопределением,
// которое проходит через те же правила переходов).
type Subscription struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	Status Status `db:"status"`
	// Идентификатор аккаунта на VPN-сервисе (пустой до первого провижена)
	RemoteRef string `db:"remote_ref"`
	// Локально закэшированный срок действия удалённого аккаунта.
	// Инвариант: Status == active ⇒ ExpiresAt > now (с точностью до тика).
	ExpiresAt *time.Time `db:"expires_at"`
	// Подписка ожидает ручного разбора (удалённый аккаунт пропал и т.п.);
	// автоматическая сверка по ней не выполняется
	NeedsReview      bool       `db:"needs_review"`
	LastReconciledAt *time.Time `db:"last_reconciled_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Provisioned сообщает, существует ли удалённый аккаунт.
func (s *Subscription) Provisioned() bool {
	return s.Status != StatusUnprovisioned && s.RemoteRef != ""
}
