// Package subscription — transitions.go: таблица переходов состояния.
// Чистая функция без побочных эффектов: решает, ЧТО делать с подпиской
// на этом тике, а выполняет решение (запросы к VPN-сервису, списание)
// движок сверки.
package subscription

import "nullvpn.ru/vpn-bot/internal/features/pricing"

// Action — действие, которое движок должен выполнить на тике.
type Action string

const (
	// ActionNone — ничего не делать
	ActionNone Action = "none"
	// ActionProvision — создать удалённый аккаунт со сроком по балансу
	ActionProvision Action = "provision"
	// ActionExtend — списать день и передвинуть срок
	ActionExtend Action = "extend"
	// ActionSuspend — отключить удалённый аккаунт (без списания)
	ActionSuspend Action = "suspend"
	// ActionResume — списать день и включить удалённый аккаунт обратно
	ActionResume Action = "resume"
)

// Decision — решение по одному аккаунту на один тик.
type Decision struct {
	Action Action
	// ChargeDaily: списать стоимость одного дня ПОСЛЕ успешного
	// удалённого вызова. Максимум одно списание за тик — отсюда же
	// берётся ограничение «догоняющего» тика.
	ChargeDaily bool
	NextStatus  Status
}

// Decide применяет таблицу переходов к текущему статусу и балансу.
//
//	unprovisioned + хватает → provision → active
//	unprovisioned + не хватает → ничего
//	active + хватает → extend (списать день) → active
//	active + не хватает → suspend (без списания) → suspended
//	suspended + хватает → resume (списать день) → active
//	suspended + не хватает → ничего
//
// Проверка «хватает» выполняется ДО списания: когда баланс опустился
// ниже стоимости дня, тик уже ничего не списывает.
func Decide(current Status, balance int64, rule pricing.Rule) Decision {
	afford := rule.CanAfford(balance)

	switch current {
	case StatusUnprovisioned:
		if afford {
			return Decision{Action: ActionProvision, NextStatus: StatusActive}
		}
		return Decision{Action: ActionNone, NextStatus: StatusUnprovisioned}

	case StatusActive:
		if afford {
			return Decision{Action: ActionExtend, ChargeDaily: true, NextStatus: StatusActive}
		}
		return Decision{Action: ActionSuspend, NextStatus: StatusSuspended}

	case StatusSuspended:
		if afford {
			return Decision{Action: ActionResume, ChargeDaily: true, NextStatus: StatusActive}
		}
		return Decision{Action: ActionNone, NextStatus: StatusSuspended}
	}

	// Неизвестный статус в базе — не трогаем
	return Decision{Action: ActionNone, NextStatus: current}
}
