// Package accounts управляет аккаунтами плательщиков: регистрацией,
// денормализованным VPN-логином и приветственным бонусом.
// models.go описывает структуры данных для работы с таблицей accounts.
package accounts

import (
	"fmt"
	"time"
)

// Account представляет плательщика в базе данных.
// Создаётся при первом контакте пользователя с ботом.
// Баланс меняется ТОЛЬКО через операции леджера (features/ledger);
// здесь он хранится как денормализованный текущий остаток.
type Account struct {
	ID           int64      `db:"id"`            // Автоинкрементный ID записи в БД
	UserID       int64      `db:"user_id"`       // Telegram user ID (уникальный)
	Username     string     `db:"username"`      // @username (может быть пустым)
	VPNUsername  string     `db:"vpn_username"`  // Логин на VPN-сервисе (детерминированный)
	Balance      int64      `db:"balance"`       // Текущий баланс в минимальных единицах
	BonusGranted bool       `db:"bonus_granted"` // Приветственный бонус уже выдан
	DeletedAt    *time.Time `db:"deleted_at"`    // Мягкое удаление (история проводок остаётся)
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// DisplayName возвращает отображаемое имя аккаунта.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return a.VPNUsername
}

// DeriveVPNUsername детерминированно выводит логин для VPN-сервиса
// из Telegram user ID. Один и тот же пользователь всегда получает
// один и тот же логин, даже если локальная запись была пересоздана.
func DeriveVPNUsername(userID int64) string {
	return fmt.Sprintf("vpn%d", userID)
}
