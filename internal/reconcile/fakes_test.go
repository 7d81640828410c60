package reconcile

// fakes_test.go — in-memory реализации хранилищ и VPN-клиента для тестов
// движка. Семантика повторяет боевые реализации: идемпотентность по ключу,
// запрет отрицательного баланса, один запуск на календарный день.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/events"
	"nullvpn.ru/vpn-bot/internal/features/accounts"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
	"nullvpn.ru/vpn-bot/internal/features/subscription"
	"nullvpn.ru/vpn-bot/internal/provisioning"
)

type fakeAccounts struct {
	mu   sync.Mutex
	accs map[int64]*accounts.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accs: make(map[int64]*accounts.Account)}
}

func (f *fakeAccounts) add(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accs[userID] = &accounts.Account{
		UserID:      userID,
		VPNUsername: accounts.DeriveVPNUsername(userID),
	}
}

func (f *fakeAccounts) ListActive(ctx context.Context) ([]*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accounts.Account
	for _, a := range f.accs {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAccounts) GetByUserID(ctx context.Context, userID int64) (*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accs[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

type fakeSubs struct {
	mu   sync.Mutex
	subs map[int64]*subscription.Subscription
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subs: make(map[int64]*subscription.Subscription)}
}

func (f *fakeSubs) get(userID int64) *subscription.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (f *fakeSubs) put(s *subscription.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s.UserID] = s
}

func (f *fakeSubs) Get(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	s := f.get(userID)
	if s == nil {
		return nil, common.ErrSubscriptionNotFound
	}
	return s, nil
}

func (f *fakeSubs) Ensure(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[userID]; !ok {
		f.subs[userID] = &subscription.Subscription{
			UserID: userID,
			Status: subscription.StatusUnprovisioned,
		}
	}
	return nil
}

func (f *fakeSubs) SetState(ctx context.Context, userID int64, status subscription.Status, remoteRef string, expiresAt *time.Time, reconciledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID]
	if !ok {
		return common.ErrSubscriptionNotFound
	}
	s.Status = status
	s.RemoteRef = remoteRef
	s.ExpiresAt = expiresAt
	s.LastReconciledAt = &reconciledAt
	return nil
}

func (f *fakeSubs) MarkNeedsReview(ctx context.Context, userID int64, needs bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[userID]; ok {
		s.NeedsReview = needs
	}
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	byKey    map[string]*ledger.Entry
	entries  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[int64]int64),
		byKey:    make(map[string]*ledger.Entry),
	}
}

func (f *fakeLedger) credit(userID, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
}

func (f *fakeLedger) balance(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeLedger) Debit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prior, ok := f.byKey[idempotencyKey]; ok {
		return prior, nil
	}
	before := f.balances[userID]
	after := before - amount
	if after < 0 {
		return nil, common.ErrInsufficientBalance
	}
	f.balances[userID] = after
	entry := &ledger.Entry{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        -amount,
		Category:      category,
		Reason:        reason,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	f.byKey[idempotencyKey] = entry
	f.entries++
	return entry, nil
}

func (f *fakeLedger) Balance(ctx context.Context, userID int64) (int64, error) {
	return f.balance(userID), nil
}

// preRecordDebit имитирует уже применённое списание упавшего тика.
func (f *fakeLedger) preRecordDebit(userID int64, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey[key] = &ledger.Entry{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       -4,
		BalanceAfter: f.balances[userID],
	}
	f.entries++
}

// fakeReferrals повторяет семантику реферального сервиса: бонус выдаётся
// не более одного раза, сорвавшаяся выдача повторяется при следующем вызове.
type fakeReferrals struct {
	mu       sync.Mutex
	calls    map[int64]int // Сколько раз движок вообще звал подтверждение
	rewarded map[int64]int // Сколько раз бонус реально выдан (не больше одного)
	failures int
}

func newFakeReferrals() *fakeReferrals {
	return &fakeReferrals{
		calls:    make(map[int64]int),
		rewarded: make(map[int64]int),
	}
}

func (f *fakeReferrals) ConfirmAndReward(ctx context.Context, referredID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[referredID]++
	if f.failures > 0 {
		f.failures--
		return errors.New("леджер недоступен")
	}
	if f.rewarded[referredID] == 0 {
		f.rewarded[referredID]++
	}
	return nil
}

func (f *fakeReferrals) rewardCount(referredID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rewarded[referredID]
}

func (f *fakeReferrals) callCount(referredID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[referredID]
}

type runRecord struct {
	id        uuid.UUID
	finished  bool
	processed int
	failed    int
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*runRecord
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: make(map[string]*runRecord)}
}

func (f *fakeRuns) Start(ctx context.Context, date time.Time) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := common.PeriodKey(date)
	if r, ok := f.runs[key]; ok {
		if r.finished {
			return uuid.Nil, false, nil
		}
		return r.id, true, nil
	}
	r := &runRecord{id: uuid.New()}
	f.runs[key] = r
	return r.id, true, nil
}

func (f *fakeRuns) Finish(ctx context.Context, id uuid.UUID, processed, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.id == id {
			r.finished = true
			r.processed = processed
			r.failed = failed
		}
	}
	return nil
}

func (f *fakeRuns) HasFinished(ctx context.Context, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[common.PeriodKey(date)]
	return ok && r.finished, nil
}

func (f *fakeRuns) record(date time.Time) *runRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[common.PeriodKey(date)]
}

type remoteAccount struct {
	username string
	enabled  bool
	expiry   time.Time
}

// fakeVPN — управляемый VPN-сервис: хранит аккаунты в памяти,
// умеет по заказу отвечать ошибками.
type fakeVPN struct {
	mu       sync.Mutex
	accounts map[string]*remoteAccount
	nextID   int

	// failNext — одноразовая ошибка следующего вызова
	failNext    error
	failForRef  map[string]error
	createCalls int
	expiryCalls int
}

func newFakeVPN() *fakeVPN {
	return &fakeVPN{
		accounts:   make(map[string]*remoteAccount),
		failForRef: make(map[string]error),
	}
}

func (f *fakeVPN) takeFailure(ref string) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if err, ok := f.failForRef[ref]; ok {
		return err
	}
	return nil
}

func (f *fakeVPN) CreateAccount(ctx context.Context, username string, initialExpiry time.Time, unlimitedTraffic bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(""); err != nil {
		return "", err
	}
	f.createCalls++
	f.nextID++
	ref := fmt.Sprintf("ref-%d", f.nextID)
	f.accounts[ref] = &remoteAccount{username: username, enabled: true, expiry: initialExpiry}
	return ref, nil
}

func (f *fakeVPN) SetExpiry(ctx context.Context, remoteRef string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(remoteRef); err != nil {
		return err
	}
	a, ok := f.accounts[remoteRef]
	if !ok {
		return provisioning.ErrRemoteNotFound
	}
	f.expiryCalls++
	a.expiry = expiresAt
	return nil
}

func (f *fakeVPN) SetStatus(ctx context.Context, remoteRef string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(remoteRef); err != nil {
		return err
	}
	a, ok := f.accounts[remoteRef]
	if !ok {
		return provisioning.ErrRemoteNotFound
	}
	a.enabled = enabled
	return nil
}

func (f *fakeVPN) GetStatus(ctx context.Context, remoteRef string) (*provisioning.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[remoteRef]
	if !ok {
		return nil, provisioning.ErrRemoteNotFound
	}
	return &provisioning.Status{ExpiresAt: a.expiry, Enabled: a.enabled}, nil
}

func (f *fakeVPN) FindByUsername(ctx context.Context, username string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ref, a := range f.accounts {
		if a.username == username {
			return ref, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeVPN) account(ref string) *remoteAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[ref]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Publish(ctx context.Context, e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) countOf(match func(events.Event) bool) int {
	n := 0
	for _, e := range s.all() {
		if match(e) {
			n++
		}
	}
	return n
}
