package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nullvpn.ru/vpn-bot/internal/features/pricing"
)

func TestDecide(t *testing.T) {
	rule := pricing.NewRule(4)

	tests := []struct {
		name    string
		status  Status
		balance int64
		want    Decision
	}{
		{
			name:    "unprovisioned с деньгами — провижен без списания",
			status:  StatusUnprovisioned,
			balance: 20,
			want:    Decision{Action: ActionProvision, ChargeDaily: false, NextStatus: StatusActive},
		},
		{
			name:    "unprovisioned без денег — ничего",
			status:  StatusUnprovisioned,
			balance: 3,
			want:    Decision{Action: ActionNone, NextStatus: StatusUnprovisioned},
		},
		{
			name:    "active с деньгами — продление со списанием",
			status:  StatusActive,
			balance: 4,
			want:    Decision{Action: ActionExtend, ChargeDaily: true, NextStatus: StatusActive},
		},
		{
			name:    "active без денег — отключение БЕЗ списания",
			status:  StatusActive,
			balance: 3,
			want:    Decision{Action: ActionSuspend, ChargeDaily: false, NextStatus: StatusSuspended},
		},
		{
			name:    "suspended с деньгами — включение со списанием",
			status:  StatusSuspended,
			balance: 8,
			want:    Decision{Action: ActionResume, ChargeDaily: true, NextStatus: StatusActive},
		},
		{
			name:    "suspended без денег — ничего",
			status:  StatusSuspended,
			balance: 0,
			want:    Decision{Action: ActionNone, NextStatus: StatusSuspended},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.status, tt.balance, rule)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_BoundaryExactlyOneDay(t *testing.T) {
	rule := pricing.NewRule(4)

	// Ровно стоимость дня — этого достаточно
	d := Decide(StatusActive, 4, rule)
	assert.Equal(t, ActionExtend, d.Action)

	// На единицу меньше — уже нет
	d = Decide(StatusActive, 3, rule)
	assert.Equal(t, ActionSuspend, d.Action)
}

func TestDecide_UnknownStatusUntouched(t *testing.T) {
	rule := pricing.NewRule(4)

	d := Decide(Status("garbage"), 100, rule)
	assert.Equal(t, ActionNone, d.Action)
	assert.Equal(t, Status("garbage"), d.NextStatus)
}
