// Package ledger — журнал денежных операций (леджер).
// models.go описывает неизменяемую проводку: каждая смена баланса
// рождает ровно одну запись, записи никогда не правятся и не удаляются.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Category — тип проводки.
type Category string

const (
	CategoryDeposit  Category = "deposit"          // Пополнение извне (платёж уже подтверждён)
	CategoryDebit    Category = "debit"            // Ежедневное списание за доступ
	CategoryBonus    Category = "bonus"            // Приветственный бонус
	CategoryReferral Category = "referral"         // Реферальный бонус
	CategoryRefund   Category = "refund"           // Возврат
	CategoryAdmin    Category = "admin_adjustment" // Ручная корректировка оператором
)

// Entry представляет одну проводку леджера.
// Инвариант: BalanceAfter = BalanceBefore + Amount, а текущий баланс
// аккаунта всегда равен сумме Amount всех его проводок — историю
// можно проиграть заново и получить тот же баланс.
type Entry struct {
	ID            uuid.UUID `db:"id"`             // UUID проводки
	UserID        int64     `db:"user_id"`        // Чей счёт
	Amount        int64     `db:"amount"`         // Сумма со знаком: + начисление, - списание
	Category      Category  `db:"category"`       // Тип операции
	Reason        string    `db:"reason"`         // Свободное описание для истории
	BalanceBefore int64     `db:"balance_before"` // Баланс до проводки
	BalanceAfter  int64     `db:"balance_after"`  // Баланс после проводки
	// Ключ идемпотентности. Повторный вызов с тем же ключом не создаёт
	// вторую проводку, а возвращает уже записанную. nil — без дедупликации.
	IdempotencyKey *string   `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}
