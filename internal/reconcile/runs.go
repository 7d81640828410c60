// Package reconcile — runs.go: учёт запусков сверки по календарным дням.
// Таблица reconcile_runs — якорь «догоняющего» тика: сколько бы дней
// процесс ни простоял, на один календарный день приходится максимум
// один завершённый запуск и максимум одно списание.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run — один запуск сверки.
type Run struct {
	ID         uuid.UUID  `db:"id"`
	RunDate    time.Time  `db:"run_date"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Processed  int        `db:"processed"`
	Failed     int        `db:"failed"`
}

// RunRepository хранит запуски в Postgres.
type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

// Start регистрирует запуск за дату date. Возвращает ok=false, если за эту
// дату уже есть ЗАВЕРШЁННЫЙ запуск. Незавершённый (процесс упал посреди
// тика) переиспользуется: повторная обработка безопасна благодаря ключам
// идемпотентности списаний.
func (r *RunRepository) Start(ctx context.Context, date time.Time) (uuid.UUID, bool, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reconcile_runs (id, run_date)
		VALUES ($1, $2)
		ON CONFLICT (run_date) DO NOTHING
	`, uuid.New(), date)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ошибка регистрации запуска: %w", err)
	}

	var id uuid.UUID
	var finishedAt *time.Time
	err = r.db.QueryRow(ctx, `
		SELECT id, finished_at FROM reconcile_runs WHERE run_date = $1
	`, date).Scan(&id, &finishedAt)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ошибка чтения запуска: %w", err)
	}

	if finishedAt != nil {
		return id, false, nil
	}
	return id, true, nil
}

// Finish фиксирует завершение запуска и счётчики.
func (r *RunRepository) Finish(ctx context.Context, id uuid.UUID, processed, failed int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE reconcile_runs
		SET finished_at = NOW(), processed = $2, failed = $3
		WHERE id = $1
	`, id, processed, failed)
	if err != nil {
		return fmt.Errorf("ошибка завершения запуска: %w", err)
	}
	return nil
}

// HasFinished сообщает, завершалась ли сверка за дату date.
// Используется часовым heartbeat-ом для обнаружения пропущенных запусков.
func (r *RunRepository) HasFinished(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM reconcile_runs
			WHERE run_date = $1 AND finished_at IS NOT NULL
		)
	`, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки запуска: %w", err)
	}
	return exists, nil
}
