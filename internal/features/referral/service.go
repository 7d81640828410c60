// Package referral — service.go: закрепление пригласившего и выдача бонуса.
// Бонус начисляется не более одного раза на приглашённого и только после
// того, как его подписка впервые стала активной.
package referral

import (
	"context"

	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
)

// Store — хранилище рёбер (реализуется *Repository, в тестах — фейком).
type Store interface {
	Create(ctx context.Context, referrerID, referredID int64) (bool, error)
	GetByReferred(ctx context.Context, referredID int64) (*Edge, error)
	Confirm(ctx context.Context, referredID int64) (bool, error)
	CountByReferrer(ctx context.Context, referrerID int64) (total, confirmed int, err error)
}

// Crediter — кусок леджера для начисления бонуса.
type Crediter interface {
	Credit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error)
}

// Service управляет реферальной программой.
type Service struct {
	store  Store
	ledger Crediter
	bonus  int64
}

func NewService(store Store, crediter Crediter, bonus int64) *Service {
	return &Service{store: store, ledger: crediter, bonus: bonus}
}

// Attach закрепляет пригласившего за приглашённым при первом контакте.
// Самоприглашение запрещено; повторное закрепление — тоже.
func (s *Service) Attach(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID {
		return common.ErrSelfReferral
	}
	created, err := s.store.Create(ctx, referrerID, referredID)
	if err != nil {
		return err
	}
	if !created {
		return common.ErrReferralExists
	}
	log.WithFields(log.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
	}).Info("Реферальное ребро создано")
	return nil
}

// ConfirmAndReward вызывается движком сверки на тиках, где подписка
// приглашённого активна. Порядок принципиален: сначала проводка, потом
// подтверждение ребра. Если начисление сорвалось, ребро остаётся
// неподтверждённым и следующий вызов повторяет попытку, а ключ
// идемпотентности в леджере не даст выдать бонус дважды.
func (s *Service) ConfirmAndReward(ctx context.Context, referredID int64) error {
	edge, err := s.store.GetByReferred(ctx, referredID)
	if err != nil {
		return err
	}
	if edge == nil || edge.Confirmed {
		return nil
	}

	if s.bonus > 0 {
		if _, err := s.ledger.Credit(ctx, edge.ReferrerID, s.bonus,
			ledger.CategoryReferral, "Бонус за приглашённого", common.ReferralKey(referredID)); err != nil {
			return err
		}
	}

	confirmed, err := s.store.Confirm(ctx, referredID)
	if err != nil {
		return err
	}
	if !confirmed {
		// Параллельный тик успел раньше; деньги в безопасности за ключом
		return nil
	}

	log.WithFields(log.Fields{
		"referrer_id": edge.ReferrerID,
		"referred_id": referredID,
		"bonus":       s.bonus,
	}).Info("Реферал подтверждён, бонус начислен")
	return nil
}

// Stats возвращает статистику пригласившего.
func (s *Service) Stats(ctx context.Context, referrerID int64) (total, confirmed int, err error) {
	return s.store.CountByReferrer(ctx, referrerID)
}
