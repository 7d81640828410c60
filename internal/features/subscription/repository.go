// Package subscription — repository.go выполняет операции с таблицей subscriptions.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// Get возвращает подписку аккаунта.
// Если записи нет — common.ErrSubscriptionNotFound.
func (r *Repository) Get(ctx context.Context, userID int64) (*Subscription, error) {
	query := `
		SELECT id, user_id, status, remote_ref, expires_at, needs_review,
		       last_reconciled_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`
	var s Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Status, &s.RemoteRef, &s.ExpiresAt,
		&s.NeedsReview, &s.LastReconciledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения подписки (user_id=%d): %w", userID, err)
	}
	return &s, nil
}

// Ensure создаёт запись подписки в начальном состоянии, если её ещё нет.
func (r *Repository) Ensure(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO subscriptions (user_id, status, remote_ref)
		VALUES ($1, $2, '')
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID, StatusUnprovisioned); err != nil {
		return fmt.Errorf("ошибка создания подписки: %w", err)
	}
	return nil
}

// SetState записывает результат тика: статус, удалённый идентификатор,
// срок действия и время последней успешной сверки.
func (r *Repository) SetState(ctx context.Context, userID int64, status Status, remoteRef string, expiresAt *time.Time, reconciledAt time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = $2, remote_ref = $3, expires_at = $4,
		    last_reconciled_at = $5, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.Exec(ctx, query, userID, status, remoteRef, expiresAt, reconciledAt); err != nil {
		return fmt.Errorf("ошибка обновления подписки: %w", err)
	}
	return nil
}

// MarkNeedsReview помечает подписку для ручного разбора.
// Статус при этом НЕ меняется: движок не делает автоматических
// выводов из пропажи удалённого аккаунта.
func (r *Repository) MarkNeedsReview(ctx context.Context, userID int64, needs bool) error {
	query := `UPDATE subscriptions SET needs_review = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, needs); err != nil {
		return fmt.Errorf("ошибка установки needs_review: %w", err)
	}
	return nil
}

// ListNeedsReview возвращает подписки, ожидающие ручного разбора.
func (r *Repository) ListNeedsReview(ctx context.Context) ([]*Subscription, error) {
	query := `
		SELECT id, user_id, status, remote_ref, expires_at, needs_review,
		       last_reconciled_at, created_at, updated_at
		FROM subscriptions
		WHERE needs_review = TRUE
		ORDER BY updated_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса подписок: %w", err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Status, &s.RemoteRef, &s.ExpiresAt,
			&s.NeedsReview, &s.LastReconciledAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования подписки: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
