// Package ledger — service.go содержит бизнес-логику леджера:
// валидацию сумм, идемпотентные начисления/списания и проверку
// сохранности журнала.
package ledger

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/common"
)

// Store — хранилище проводок. Движок сверки и сервисы работают только
// через этот интерфейс, поэтому в тестах его подменяет in-memory фейк.
type Store interface {
	Apply(ctx context.Context, userID, amount int64, category Category, reason, idempotencyKey string) (*Entry, bool, error)
	Balance(ctx context.Context, userID int64) (int64, error)
	Entries(ctx context.Context, userID int64, limit int) ([]*Entry, error)
	SumEntries(ctx context.Context, userID int64) (int64, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Service управляет денежными операциями.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Credit начисляет amount на счёт. amount должен быть > 0.
// idempotencyKey может быть пустым — тогда дедупликации нет
// (разовые пополнения из платёжного слоя приходят уже подтверждёнными
// и со своим ключом).
func (s *Service) Credit(ctx context.Context, userID, amount int64, category Category, reason, idempotencyKey string) (*Entry, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	entry, applied, err := s.store.Apply(ctx, userID, amount, category, reason, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !applied {
		log.WithFields(log.Fields{
			"user_id": userID,
			"key":     idempotencyKey,
		}).Debug("Начисление уже применялось, возвращаем прежнюю проводку")
	}
	return entry, nil
}

// Debit списывает amount со счёта. amount должен быть > 0.
// Возвращает common.ErrInsufficientBalance, если денег не хватает:
// баланс никогда не уходит в минус.
func (s *Service) Debit(ctx context.Context, userID, amount int64, category Category, reason, idempotencyKey string) (*Entry, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	entry, applied, err := s.store.Apply(ctx, userID, -amount, category, reason, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !applied {
		log.WithFields(log.Fields{
			"user_id": userID,
			"key":     idempotencyKey,
		}).Debug("Списание уже применялось, возвращаем прежнюю проводку")
	}
	return entry, nil
}

// Balance возвращает текущий баланс аккаунта.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// VerifyConservation сверяет денормализованный баланс с суммой проводок.
// Расхождение означает порчу данных: мы её НЕ чиним автоматически,
// только возвращаем common.ErrLedgerInvariant наверх.
func (s *Service) VerifyConservation(ctx context.Context, userID int64) error {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := s.store.SumEntries(ctx, userID)
	if err != nil {
		return err
	}
	if balance != sum {
		return fmt.Errorf("user_id=%d: баланс %d, сумма проводок %d: %w",
			userID, balance, sum, common.ErrLedgerInvariant)
	}
	return nil
}

// AuditAll прогоняет проверку сохранности по всем аккаунтам леджера.
// Возвращает список user_id с расхождениями; вызывается еженедельным кроном.
func (s *Service) AuditAll(ctx context.Context) ([]int64, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var broken []int64
	for _, id := range ids {
		if err := s.VerifyConservation(ctx, id); err != nil {
			log.WithError(err).WithField("user_id", id).Error("Нарушение инварианта леджера")
			broken = append(broken, id)
		}
	}
	return broken, nil
}

// History возвращает форматированную историю последних проводок.
// Потребляет её внешний слой сообщений; разметка чата остаётся за ним.
func (s *Service) History(ctx context.Context, userID int64) (string, error) {
	entries, err := s.store.Entries(ctx, userID, 10)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "У вас пока нет операций", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Последние %d операций:\n", len(entries)))
	for i, e := range entries {
		sign := "+"
		if e.Amount < 0 {
			sign = "-"
		}
		amount := e.Amount
		if amount < 0 {
			amount = -amount
		}
		sb.WriteString(fmt.Sprintf("%d. %s | %s%d | %s\n",
			i+1, common.FormatDateTime(e.CreatedAt), sign, amount, e.Reason))
	}
	return sb.String(), nil
}
