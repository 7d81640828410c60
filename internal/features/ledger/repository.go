// Package ledger — repository.go выполняет все операции с таблицей ledger_entries
// и денормализованным балансом в accounts. Каждая денежная операция идёт
// в транзакции БД с блокировкой строки аккаунта (FOR UPDATE): проверка ключа
// идемпотентности, обновление баланса и запись проводки либо происходят все
// вместе, либо не происходят вовсе.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nullvpn.ru/vpn-bot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Apply проводит одну денежную операцию со знаком: amount > 0 — начисление,
// amount < 0 — списание. Возвращает проводку и флаг applied: false означает,
// что проводка с таким ключом идемпотентности уже существовала и возвращена
// как есть, без повторного движения денег.
//
// Порядок внутри транзакции важен: сначала блокируем строку аккаунта,
// потом проверяем ключ. Так два конкурентных вызова с одним ключом
// сериализуются на блокировке, и второй гарантированно увидит проводку первого.
func (r *Repository) Apply(ctx context.Context, userID, amount int64, category Category, reason, idempotencyKey string) (*Entry, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку аккаунта и читаем текущий баланс
	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
		}
		return nil, false, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	// Проверяем ключ идемпотентности: если операция уже применялась —
	// возвращаем записанный тогда результат и ничего не меняем
	if idempotencyKey != "" {
		existing, err := r.findByKey(ctx, tx, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	// Списание не может увести баланс в минус
	if amount < 0 && balance+amount < 0 {
		return nil, false, fmt.Errorf("нужно %d, есть %d: %w", -amount, balance, common.ErrInsufficientBalance)
	}

	entry := &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		Category:      category,
		Reason:        reason,
		BalanceBefore: balance,
		BalanceAfter:  balance + amount,
	}
	if idempotencyKey != "" {
		entry.IdempotencyKey = &idempotencyKey
	}

	// Обновляем денормализованный баланс
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, entry.BalanceAfter)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка обновления баланса: %w", err)
	}

	// Записываем проводку в журнал
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, category, reason, balance_before, balance_after, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.Amount, entry.Category, entry.Reason,
		entry.BalanceBefore, entry.BalanceAfter, entry.IdempotencyKey,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка записи проводки: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return entry, true, nil
}

// findByKey ищет проводку по ключу идемпотентности внутри транзакции.
func (r *Repository) findByKey(ctx context.Context, tx pgx.Tx, key string) (*Entry, error) {
	var e Entry
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, amount, category, reason, balance_before, balance_after, idempotency_key, created_at
		FROM ledger_entries
		WHERE idempotency_key = $1
	`, key).Scan(
		&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Reason,
		&e.BalanceBefore, &e.BalanceAfter, &e.IdempotencyKey, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска по ключу идемпотентности: %w", err)
	}
	return &e, nil
}

// Balance возвращает текущий баланс аккаунта.
func (r *Repository) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// Entries возвращает последние N проводок аккаунта, новые первыми.
func (r *Repository) Entries(ctx context.Context, userID int64, limit int) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, category, reason, balance_before, balance_after, idempotency_key, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения проводок: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Reason,
			&e.BalanceBefore, &e.BalanceAfter, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования проводки: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SumEntries возвращает сумму всех проводок аккаунта.
// По инварианту леджера она всегда равна текущему балансу.
func (r *Repository) SumEntries(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка суммирования проводок: %w", err)
	}
	return sum, nil
}

// ListUserIDs возвращает все user_id, у которых есть хоть одна проводка.
// Используется еженедельной проверкой сохранности леджера.
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT user_id FROM ledger_entries`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса аккаунтов леджера: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования user_id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
