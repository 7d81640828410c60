package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodKey(t *testing.T) {
	tm := time.Date(2026, 3, 7, 15, 42, 11, 0, time.UTC)
	assert.Equal(t, "2026-03-07", PeriodKey(tm))

	// Любой момент одного дня даёт один ключ
	morning := time.Date(2026, 3, 7, 0, 0, 1, 0, time.UTC)
	evening := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, PeriodKey(morning), PeriodKey(evening))
}

func TestDebitKey(t *testing.T) {
	tm := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "reconcile:42:2026-03-07", DebitKey(42, tm))

	// Повтор тика в тот же день — тот же ключ
	later := tm.Add(5 * time.Hour)
	assert.Equal(t, DebitKey(42, tm), DebitKey(42, later))

	// Следующий день — другой ключ
	tomorrow := tm.AddDate(0, 0, 1)
	assert.NotEqual(t, DebitKey(42, tm), DebitKey(42, tomorrow))
}

func TestReferralKey(t *testing.T) {
	assert.Equal(t, "referral:7", ReferralKey(7))
}

func TestPluralizeDays(t *testing.T) {
	assert.Equal(t, "день", PluralizeDays(1))
	assert.Equal(t, "дня", PluralizeDays(2))
	assert.Equal(t, "дней", PluralizeDays(5))
	assert.Equal(t, "дней", PluralizeDays(11))
	assert.Equal(t, "день", PluralizeDays(21))
	assert.Equal(t, "дня", PluralizeDays(23))
}

func TestFormatBalance(t *testing.T) {
	assert.Equal(t, "1 рубль", FormatBalance(1))
	assert.Equal(t, "3 рубля", FormatBalance(3))
	assert.Equal(t, "150 рублей", FormatBalance(150))
}
