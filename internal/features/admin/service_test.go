package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
	"nullvpn.ru/vpn-bot/internal/features/subscription"
)

type fakeLedger struct {
	lastCategory ledger.Category
	lastKey      string
	lastAmount   int64
}

func (f *fakeLedger) Credit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error) {
	f.lastCategory = category
	f.lastKey = idempotencyKey
	f.lastAmount = amount
	return &ledger.Entry{UserID: userID, Amount: amount}, nil
}

func (f *fakeLedger) Debit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error) {
	f.lastCategory = category
	f.lastKey = idempotencyKey
	f.lastAmount = -amount
	return &ledger.Entry{UserID: userID, Amount: -amount}, nil
}

type fakeTransitioner struct {
	calls []int64
}

func (f *fakeTransitioner) ForceTransition(ctx context.Context, userID int64, now time.Time) error {
	f.calls = append(f.calls, userID)
	return nil
}

func newFakeSubsStore() *fakeSubs {
	return &fakeSubs{pending: make(map[int64]bool)}
}

type fakeSubs struct {
	pending map[int64]bool
}

func (f *fakeSubs) ListNeedsReview(ctx context.Context) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	for id, needs := range f.pending {
		if needs {
			out = append(out, &subscription.Subscription{UserID: id, NeedsReview: true})
		}
	}
	return out, nil
}

func (f *fakeSubs) MarkNeedsReview(ctx context.Context, userID int64, needs bool) error {
	f.pending[userID] = needs
	return nil
}

func TestService_CheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := NewService(&fakeLedger{}, &fakeTransitioner{}, newFakeSubsStore(), string(hash))

	assert.NoError(t, svc.CheckPassword("s3cret"))
	assert.ErrorIs(t, svc.CheckPassword("wrong"), common.ErrWrongPassword)
	assert.ErrorIs(t, svc.CheckPassword(""), common.ErrWrongPassword)
}

func TestService_ManualAdjustments(t *testing.T) {
	ctx := context.Background()
	money := &fakeLedger{}
	svc := NewService(money, &fakeTransitioner{}, newFakeSubsStore(), "")

	entry, err := svc.Credit(ctx, 999, 1, 50, "компенсация", "admin:credit:1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), entry.Amount)
	assert.Equal(t, ledger.CategoryAdmin, money.lastCategory)
	assert.Equal(t, "admin:credit:1", money.lastKey)

	entry, err = svc.Debit(ctx, 999, 1, 30, "откат ошибочного платежа", "admin:debit:1")
	require.NoError(t, err)
	assert.Equal(t, int64(-30), entry.Amount)
	assert.Equal(t, ledger.CategoryAdmin, money.lastCategory)
}

func TestService_ForceTransition(t *testing.T) {
	engine := &fakeTransitioner{}
	svc := NewService(&fakeLedger{}, engine, newFakeSubsStore(), "")

	require.NoError(t, svc.ForceTransition(context.Background(), 999, 1))
	assert.Equal(t, []int64{1}, engine.calls)
}

func TestService_ResolveReview(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTransitioner{}
	subs := newFakeSubsStore()
	subs.pending[1] = true
	svc := NewService(&fakeLedger{}, engine, subs, "")

	pending, err := svc.PendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].UserID)

	// Снятие пометки сразу прогоняет аккаунт через движок
	require.NoError(t, svc.ResolveReview(ctx, 999, 1))
	assert.False(t, subs.pending[1])
	assert.Equal(t, []int64{1}, engine.calls)

	pending, err = svc.PendingReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
