// Package accounts — repository.go отвечает за все операции с таблицей accounts.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package accounts

import (
	"context"
	"errors"
	"fmt"

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

// Create добавляет новый аккаунт. На конфликте по user_id обновляет
// только username (не трогает баланс, бонус и мягкое удаление).
func (r *Repository) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (user_id, username, vpn_username, balance, bonus_granted)
		VALUES ($1, $2, $3, 0, FALSE)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, a.UserID, a.Username, a.VPNUsername)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления аккаунта: %w", err)
	}
	return nil
}

// GetByUserID возвращает аккаунт по Telegram user ID.
// Если не найден — common.ErrAccountNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Account, error) {
	query := `
		SELECT id, user_id, username, vpn_username, balance, bonus_granted,
		       deleted_at, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`
	var a Account
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.Username, &a.VPNUsername, &a.Balance,
		&a.BonusGranted, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения аккаунта (user_id=%d): %w", userID, err)
	}
	return &a, nil
}

func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

// MarkBonusGranted помечает, что приветственный бонус выдан.
// Само начисление делает леджер; флаг защищает от повторной выдачи.
func (r *Repository) MarkBonusGranted(ctx context.Context, userID int64) error {
	query := `UPDATE accounts SET bonus_granted = TRUE, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ошибка установки флага бонуса: %w", err)
	}
	return nil
}

// SoftDelete помечает аккаунт удалённым. Физически запись не удаляется
// никогда, пока существует история проводок.
func (r *Repository) SoftDelete(ctx context.Context, userID int64) error {
	query := `UPDATE accounts SET deleted_at = NOW(), updated_at = NOW() WHERE user_id = $1 AND deleted_at IS NULL`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ошибка мягкого удаления: %w", err)
	}
	return nil
}

// ListActive возвращает все не удалённые аккаунты.
// Используется планировщиком для обхода в тике сверки.
func (r *Repository) ListActive(ctx context.Context) ([]*Account, error) {
	query := `
		SELECT id, user_id, username, vpn_username, balance, bonus_granted,
		       deleted_at, created_at, updated_at
		FROM accounts
		WHERE deleted_at IS NULL
		ORDER BY user_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса аккаунтов: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Username, &a.VPNUsername, &a.Balance,
			&a.BonusGranted, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}

	return out, nil
}
