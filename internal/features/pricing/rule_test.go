package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRule_DaysForBalance(t *testing.T) {
	rule := NewRule(4)

	assert.Equal(t, 0, rule.DaysForBalance(0))
	assert.Equal(t, 0, rule.DaysForBalance(3))
	assert.Equal(t, 1, rule.DaysForBalance(4))
	// Остаток меньше стоимости дня не покупает ничего
	assert.Equal(t, 1, rule.DaysForBalance(7))
	assert.Equal(t, 5, rule.DaysForBalance(20))
	assert.Equal(t, 0, rule.DaysForBalance(-10))
}

func TestRule_CostForDays(t *testing.T) {
	rule := NewRule(4)

	assert.Equal(t, int64(0), rule.CostForDays(0))
	assert.Equal(t, int64(4), rule.CostForDays(1))
	assert.Equal(t, int64(20), rule.CostForDays(5))
	assert.Equal(t, int64(0), rule.CostForDays(-1))
}

func TestRule_CanAfford(t *testing.T) {
	rule := NewRule(4)

	assert.False(t, rule.CanAfford(0))
	assert.False(t, rule.CanAfford(3))
	assert.True(t, rule.CanAfford(4))
	assert.True(t, rule.CanAfford(100))
}

func TestRule_RoundTrip(t *testing.T) {
	rule := NewRule(7)

	// CostForDays(DaysForBalance(b)) никогда не превышает b
	for b := int64(0); b < 100; b++ {
		days := rule.DaysForBalance(b)
		assert.LessOrEqual(t, rule.CostForDays(days), b)
	}
}
