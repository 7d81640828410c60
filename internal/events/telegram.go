// Package events — telegram.go: приёмник, который отправляет пользователю
// простое текстовое уведомление. Разметка чата, клавиатуры и команды
// живут во внешнем слое сообщений — здесь только текст.
package events

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/common"
)

// TelegramNotifier шлёт уведомления через Bot API.
// Доставка at-least-once: при повторном тике пользователь может получить
// дубликат, это осознанная цена простоты.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
	// Чат операторов для алертов needs_review; 0 — алерты только в лог
	adminChatID int64
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, adminChatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, adminChatID: adminChatID}
}

func (n *TelegramNotifier) Publish(_ context.Context, e Event) {
	text := n.render(e)
	if text == "" {
		return
	}

	chatID := e.AccountID()
	if _, isAlert := e.(NeedsReview); isAlert {
		if n.adminChatID == 0 {
			return
		}
		chatID = n.adminChatID
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		// Ошибку доставки не поднимаем: сверка важнее уведомления
		log.WithError(err).WithField("user_id", e.AccountID()).Warn("Не удалось отправить уведомление")
	}
}

func (n *TelegramNotifier) render(e Event) string {
	switch ev := e.(type) {
	case LowBalance:
		return fmt.Sprintf("Баланс заканчивается: %s, хватит на %d %s. Пополните счёт, чтобы не потерять доступ.",
			common.FormatBalance(ev.Balance), ev.DaysLeft, common.PluralizeDays(ev.DaysLeft))
	case Suspended:
		return "Доступ приостановлен: на счёте не хватает средств. Пополните баланс — доступ включится автоматически."
	case Reactivated:
		return fmt.Sprintf("Доступ снова включён! Оплачено %d %s.", ev.Days, common.PluralizeDays(ev.Days))
	case Extended:
		return "" // ежедневные продления не спамим
	case Provisioned:
		return fmt.Sprintf("VPN-доступ создан! Баланса хватает на %d %s.", ev.Days, common.PluralizeDays(ev.Days))
	case NeedsReview:
		return fmt.Sprintf("⚠️ Аккаунт %d требует ручного разбора: %s", ev.UserID, ev.Reason)
	}
	return ""
}
