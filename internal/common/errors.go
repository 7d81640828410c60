// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях движка подписок.
// Эти ошибки позволяют сервисам различать типы проблем:
// бизнес-условия (нехватка средств), сбои внешнего сервиса и порчу данных.
package common

import "errors"

// Ошибки леджера (баланс, списания)
var (
	// ErrInsufficientBalance — на счёте не хватает средств для списания.
	// Это ожидаемое бизнес-условие, а не сбой: планировщик на него
	// реагирует переводом подписки в suspended.
	ErrInsufficientBalance = errors.New("недостаточно средств на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
	// ErrLedgerInvariant — баланс аккаунта разошёлся с суммой его проводок.
	// Не должна возникать никогда; если возникла — тик по аккаунту
	// прерывается и аккаунт помечается для ручного разбора.
	ErrLedgerInvariant = errors.New("нарушен инвариант леджера: баланс не равен сумме проводок")
)

// Ошибки подписок
var (
	// ErrSubscriptionNotFound — у аккаунта нет записи подписки
	ErrSubscriptionNotFound = errors.New("подписка не найдена")
	// ErrNeedsReview — подписка помечена для ручного разбора,
	// автоматическая сверка по ней приостановлена
	ErrNeedsReview = errors.New("подписка ожидает ручного разбора")
)

// Ошибки рефералов
var (
	// ErrSelfReferral — попытка указать самого себя пригласившим
	ErrSelfReferral = errors.New("нельзя пригласить самого себя")
	// ErrReferralExists — за этим пользователем уже закреплён пригласивший
	ErrReferralExists = errors.New("пригласивший уже закреплён")
)

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль оператора
	ErrWrongPassword = errors.New("неверный пароль")
)
