// Package accounts — service.go содержит бизнес-логику регистрации.
// Аккаунт создаётся при первом контакте; приветственный бонус
// выдаётся не более одного раза за жизнь аккаунта.
package accounts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
)

// Store — хранилище аккаунтов (реализуется *Repository, в тестах — фейком).
type Store interface {
	Create(ctx context.Context, a *Account) error
	GetByUserID(ctx context.Context, userID int64) (*Account, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	MarkBonusGranted(ctx context.Context, userID int64) error
	SoftDelete(ctx context.Context, userID int64) error
	ListActive(ctx context.Context) ([]*Account, error)
}

// Crediter — тот кусок леджера, который нужен регистрации.
type Crediter interface {
	Credit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error)
}

// Service управляет аккаунтами плательщиков.
type Service struct {
	store        Store
	ledger       Crediter
	welcomeBonus int64
}

func NewService(store Store, crediter Crediter, welcomeBonus int64) *Service {
	return &Service{store: store, ledger: crediter, welcomeBonus: welcomeBonus}
}

// Register создаёт аккаунт при первом контакте (или обновляет username)
// и один раз выдаёт приветственный бонус. Повторные вызовы безопасны:
// флаг bonus_granted плюс ключ идемпотентности не дадут выдать бонус дважды.
func (s *Service) Register(ctx context.Context, userID int64, username string) (*Account, error) {
	a := &Account{
		UserID:   userID,
		Username: username,
		// VPN-имя выводится из user ID, а не из username:
		// username в Telegram меняется, имя на VPN-сервисе — нет.
		VPNUsername: DeriveVPNUsername(userID),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	acc, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !acc.BonusGranted && s.welcomeBonus > 0 {
		if _, err := s.ledger.Credit(ctx, userID, s.welcomeBonus,
			ledger.CategoryBonus, "Приветственный бонус", common.WelcomeKey(userID)); err != nil {
			return nil, err
		}
		if err := s.store.MarkBonusGranted(ctx, userID); err != nil {
			return nil, err
		}
		acc.BonusGranted = true
		acc.Balance += s.welcomeBonus

		log.WithFields(log.Fields{
			"user_id": userID,
			"amount":  s.welcomeBonus,
		}).Info("Выдан приветственный бонус")
	}

	return acc, nil
}

// Get возвращает аккаунт по user ID.
func (s *Service) Get(ctx context.Context, userID int64) (*Account, error) {
	return s.store.GetByUserID(ctx, userID)
}

// ListActive возвращает все живые аккаунты для тика сверки.
func (s *Service) ListActive(ctx context.Context) ([]*Account, error) {
	return s.store.ListActive(ctx)
}

// Delete мягко удаляет аккаунт. История проводок остаётся навсегда.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	return s.store.SoftDelete(ctx, userID)
}
