// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм, работа с датами
// расчётных периодов.
package common

import (
	"fmt"
	"math"
	"time"
)

// PeriodDate возвращает дату расчётного периода (без времени) для момента t.
// Один календарный день = один период сверки.
func PeriodDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// PeriodKey возвращает строковый ключ периода в формате 2006-01-02.
// Используется в ключах идемпотентности списаний: повторный тик за тот же
// день получает тот же ключ и не спишет деньги второй раз.
func PeriodKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DebitKey собирает ключ идемпотентности ежедневного списания по аккаунту.
func DebitKey(userID int64, now time.Time) string {
	return fmt.Sprintf("reconcile:%d:%s", userID, PeriodKey(now))
}

// ReferralKey собирает ключ идемпотентности реферального бонуса.
// Ключ зависит только от приглашённого, поэтому бонус начисляется
// не более одного раза за всю жизнь приглашённого аккаунта.
func ReferralKey(referredID int64) string {
	return fmt.Sprintf("referral:%d", referredID)
}

// WelcomeKey собирает ключ идемпотентности приветственного бонуса.
func WelcomeKey(userID int64) string {
	return fmt.Sprintf("welcome:%d", userID)
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила:
//   - 1, 21, 31 → "день"
//   - 2-4, 22-24 → "дня"
//   - 5-20, 25-30 → "дней"
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// PluralizeRubles возвращает правильную форму слова «рубль» для числа n.
func PluralizeRubles(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "рубль"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "рубля"
	}
	return "рублей"
}

// FormatBalance форматирует баланс в читабельную строку.
// Пример: FormatBalance(150) → "150 рублей"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%d %s", balance, PluralizeRubles(balance))
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат проводок и сроков подписки.
func FormatDateTime(t time.Time) string {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
