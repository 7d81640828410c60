// Package pricing — правило конвертации «баланс ↔ дни доступа».
// Единственное место в системе, где живёт курс: N единиц валюты = 1 день.
package pricing

// Rule хранит стоимость одного дня доступа в минимальных единицах валюты.
type Rule struct {
	dailyCost int64
}

// NewRule создаёт правило конвертации. dailyCost должен быть > 0,
// это проверяет config.Validate ещё на старте.
func NewRule(dailyCost int64) Rule {
	return Rule{dailyCost: dailyCost}
}

// DailyCost возвращает стоимость одного дня.
func (r Rule) DailyCost() int64 {
	return r.dailyCost
}

// DaysForBalance возвращает, сколько целых дней доступа покупает баланс.
// Округление вниз: остаток меньше стоимости дня не покупает ничего.
func (r Rule) DaysForBalance(balance int64) int {
	if balance < 0 {
		return 0
	}
	return int(balance / r.dailyCost)
}

// CostForDays возвращает стоимость указанного числа дней.
func (r Rule) CostForDays(days int) int64 {
	if days < 0 {
		return 0
	}
	return int64(days) * r.dailyCost
}

// CanAfford сообщает, хватает ли баланса хотя бы на один день.
// Именно это условие гоняет таблицу переходов подписки.
func (r Rule) CanAfford(balance int64) bool {
	return balance >= r.dailyCost
}
