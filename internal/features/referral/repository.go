// Package referral — repository.go выполняет операции с таблицей referrals.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет ребро. Возвращает created=false, если за приглашённым
// уже закреплён пригласивший (конфликт по referred_id).
func (r *Repository) Create(ctx context.Context, referrerID, referredID int64) (bool, error) {
	query := `
		INSERT INTO referrals (referrer_id, referred_id, confirmed)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (referred_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, referrerID, referredID)
	if err != nil {
		return false, fmt.Errorf("ошибка создания реферального ребра: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByReferred возвращает ребро по приглашённому (nil — ребра нет).
func (r *Repository) GetByReferred(ctx context.Context, referredID int64) (*Edge, error) {
	query := `
		SELECT id, referrer_id, referred_id, confirmed, created_at, confirmed_at
		FROM referrals
		WHERE referred_id = $1
	`
	var e Edge
	err := r.db.QueryRow(ctx, query, referredID).Scan(
		&e.ID, &e.ReferrerID, &e.ReferredID, &e.Confirmed, &e.CreatedAt, &e.ConfirmedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения реферального ребра: %w", err)
	}
	return &e, nil
}

// Confirm подтверждает ребро. Возвращает confirmed=false, если оно
// уже было подтверждено раньше — WHERE NOT confirmed делает операцию
// «ровно один раз» на уровне БД.
func (r *Repository) Confirm(ctx context.Context, referredID int64) (bool, error) {
	query := `
		UPDATE referrals
		SET confirmed = TRUE, confirmed_at = NOW()
		WHERE referred_id = $1 AND confirmed = FALSE
	`
	tag, err := r.db.Exec(ctx, query, referredID)
	if err != nil {
		return false, fmt.Errorf("ошибка подтверждения ребра: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountByReferrer возвращает статистику пригласившего:
// всего приглашено и сколько подтверждено.
func (r *Repository) CountByReferrer(ctx context.Context, referrerID int64) (total, confirmed int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE confirmed)
		FROM referrals
		WHERE referrer_id = $1
	`
	if err := r.db.QueryRow(ctx, query, referrerID).Scan(&total, &confirmed); err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта рефералов: %w", err)
	}
	return total, confirmed, nil
}
