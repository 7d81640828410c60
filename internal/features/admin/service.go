// Package admin — операции оператора: ручные корректировки баланса
// и принудительный прогон аккаунта через таблицу переходов.
// Никакого отдельного набора правил для админки нет: переопределение
// идёт через тот же движок, что и плановая сверка.
package admin

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
	"nullvpn.ru/vpn-bot/internal/features/subscription"
)

// Ledger — денежные операции, доступные оператору.
type Ledger interface {
	Credit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error)
	Debit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error)
}

// Transitioner — принудительный прогон через правила переходов.
type Transitioner interface {
	ForceTransition(ctx context.Context, userID int64, now time.Time) error
}

// Subscriptions — кусок подписок, нужный оператору: очередь ручного
// разбора и снятие пометки.
type Subscriptions interface {
	ListNeedsReview(ctx context.Context) ([]*subscription.Subscription, error)
	MarkNeedsReview(ctx context.Context, userID int64, needs bool) error
}

// Service выполняет операции оператора после проверки пароля.
type Service struct {
	money        Ledger
	engine       Transitioner
	subs         Subscriptions
	passwordHash string
}

func NewService(money Ledger, engine Transitioner, subs Subscriptions, passwordHash string) *Service {
	return &Service{money: money, engine: engine, subs: subs, passwordHash: passwordHash}
}

// CheckPassword сверяет пароль оператора с bcrypt-хэшем из конфигурации.
func (s *Service) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return common.ErrWrongPassword
	}
	return nil
}

// Credit вручную начисляет средства (категория admin_adjustment).
// Ключ идемпотентности обязателен: операторские команды тоже ретраятся.
func (s *Service) Credit(ctx context.Context, operatorID, userID, amount int64, reason, key string) (*ledger.Entry, error) {
	entry, err := s.money.Credit(ctx, userID, amount, ledger.CategoryAdmin, reason, key)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"operator_id": operatorID,
		"user_id":     userID,
		"amount":      amount,
	}).Info("Ручное начисление")
	return entry, nil
}

// Debit вручную списывает средства (категория admin_adjustment).
func (s *Service) Debit(ctx context.Context, operatorID, userID, amount int64, reason, key string) (*ledger.Entry, error) {
	entry, err := s.money.Debit(ctx, userID, amount, ledger.CategoryAdmin, reason, key)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"operator_id": operatorID,
		"user_id":     userID,
		"amount":      amount,
	}).Info("Ручное списание")
	return entry, nil
}

// ForceTransition немедленно прогоняет аккаунт через таблицу переходов.
// Идёт через движок: те же замки, тот же порядок «провижен → списание».
func (s *Service) ForceTransition(ctx context.Context, operatorID, userID int64) error {
	log.WithFields(log.Fields{
		"operator_id": operatorID,
		"user_id":     userID,
	}).Info("Принудительный прогон аккаунта")
	return s.engine.ForceTransition(ctx, userID, time.Now())
}

// PendingReviews возвращает подписки, ожидающие ручного разбора.
func (s *Service) PendingReviews(ctx context.Context) ([]*subscription.Subscription, error) {
	return s.subs.ListNeedsReview(ctx)
}

// ResolveReview снимает пометку ручного разбора после того, как оператор
// починил удалённую сторону, и сразу прогоняет аккаунт через таблицу
// переходов, чтобы не ждать следующего тика.
func (s *Service) ResolveReview(ctx context.Context, operatorID, userID int64) error {
	if err := s.subs.MarkNeedsReview(ctx, userID, false); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"operator_id": operatorID,
		"user_id":     userID,
	}).Info("Пометка ручного разбора снята")
	return s.engine.ForceTransition(ctx, userID, time.Now())
}
