// Package referral управляет реферальными связями: кто кого привёл
// и когда пригласившему положен бонус.
// models.go описывает направленное ребро «пригласивший → приглашённый».
package referral

import "time"

// Edge — реферальное ребро. Создаётся, когда приглашённый впервые
// приходит с реферальным кодом; после подтверждения неизменяемо.
type Edge struct {
	ID         int64 `db:"id"`
	ReferrerID int64 `db:"referrer_id"` // кто пригласил
	ReferredID int64 `db:"referred_id"` // кто пришёл (уникален: один пригласивший на аккаунт)
	// Подтверждение ставится один раз — когда подписка приглашённого
	// впервые становится активной. До этого бонус не начисляется,
	// чтобы нельзя было фармить бонусы неактивированными регистрациями.
	Confirmed   bool       `db:"confirmed"`
	CreatedAt   time.Time  `db:"created_at"`
	ConfirmedAt *time.Time `db:"confirmed_at"`
}
