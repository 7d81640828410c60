// Package events — уведомления о результатах сверки.
// Движок публикует события «выстрелил и забыл»: доставка at-least-once,
// потребители обязаны переживать дубликаты. Ошибка публикации никогда
// не влияет на сам тик сверки.
package events

import "context"

// Event — одно событие сверки. Конкретные типы ниже.
type Event interface {
	// AccountID возвращает, кого событие касается.
	AccountID() int64
}

// LowBalance — остатка хватает меньше чем на LOW_BALANCE_DAYS дней.
type LowBalance struct {
	UserID   int64
	Balance  int64
	DaysLeft int
}

// Suspended — доступ отключён за нехватку средств.
type Suspended struct {
	UserID int64
}

// Reactivated — доступ включён обратно после пополнения.
type Reactivated struct {
	UserID int64
	Days   int
}

// Extended — подписка продлена, остаток хватает на Days дней.
type Extended struct {
	UserID int64
	Days   int
}

// Provisioned — аккаунт впервые заведён на VPN-сервисе.
type Provisioned struct {
	UserID int64
	Days   int
}

// NeedsReview — удалённый аккаунт пропал, требуется оператор.
type NeedsReview struct {
	UserID int64
	Reason string
}

func (e LowBalance) AccountID() int64  { return e.UserID }
func (e Suspended) AccountID() int64   { return e.UserID }
func (e Reactivated) AccountID() int64 { return e.UserID }
func (e Extended) AccountID() int64    { return e.UserID }
func (e Provisioned) AccountID() int64 { return e.UserID }
func (e NeedsReview) AccountID() int64 { return e.UserID }

// Sink принимает события. Реализации не должны блокировать тик надолго
// и не должны возвращать ошибку как повод прервать сверку.
type Sink interface {
	Publish(ctx context.Context, e Event)
}
