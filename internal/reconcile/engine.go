// Package reconcile — engine.go: движок сверки балансов и подписок.
// Раз в период движок прогоняет каждый аккаунт через таблицу переходов:
// сначала зовёт VPN-сервис, и только после подтверждённого успеха
// списывает деньги (ключ идемпотентности защищает от двойного списания
// при повторе тика). Сбой одного аккаунта никогда не прерывает обход.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nullvpn.ru/vpn-bot/internal/common"
	"nullvpn.ru/vpn-bot/internal/events"
	"nullvpn.ru/vpn-bot/internal/features/accounts"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
	"nullvpn.ru/vpn-bot/internal/features/pricing"
	"nullvpn.ru/vpn-bot/internal/features/subscription"
	"nullvpn.ru/vpn-bot/internal/provisioning"
)

// AccountSource — чтение аккаунтов. Движок сам аккаунты не создаёт.
type AccountSource interface {
	ListActive(ctx context.Context) ([]*accounts.Account, error)
	GetByUserID(ctx context.Context, userID int64) (*accounts.Account, error)
}

// SubscriptionStore — чтение и запись состояния подписок.
type SubscriptionStore interface {
	Get(ctx context.Context, userID int64) (*subscription.Subscription, error)
	Ensure(ctx context.Context, userID int64) error
	SetState(ctx context.Context, userID int64, status subscription.Status, remoteRef string, expiresAt *time.Time, reconciledAt time.Time) error
	MarkNeedsReview(ctx context.Context, userID int64, needs bool) error
}

// Ledger — денежные операции, нужные движку.
type Ledger interface {
	Debit(ctx context.Context, userID, amount int64, category ledger.Category, reason, idempotencyKey string) (*ledger.Entry, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// ReferralConfirmer — подтверждение реферала при первой активации.
type ReferralConfirmer interface {
	ConfirmAndReward(ctx context.Context, referredID int64) error
}

// RunStore — учёт запусков по календарным дням.
type RunStore interface {
	Start(ctx context.Context, date time.Time) (uuid.UUID, bool, error)
	Finish(ctx context.Context, id uuid.UUID, processed, failed int) error
	HasFinished(ctx context.Context, date time.Time) (bool, error)
}

// Options — настройки движка из конфигурации.
type Options struct {
	Workers        int           // Параллельность обхода
	AccountTimeout time.Duration // Таймаут обработки одного аккаунта
	LowBalanceDays int           // Порог предупреждения о низком балансе
}

// Engine — движок сверки. Между тиками не держит никакого состояния,
// кроме замков: всё читается и пишется через хранилища.
type Engine struct {
	accs  AccountSource
	subs  SubscriptionStore
	money Ledger
	refs  ReferralConfirmer
	runs  RunStore
	vpn   provisioning.Client
	sink  events.Sink
	rule  pricing.Rule
	opts  Options
	locks *KeyedLocks
}

func NewEngine(
	accs AccountSource,
	subs SubscriptionStore,
	money Ledger,
	refs ReferralConfirmer,
	runs RunStore,
	vpn provisioning.Client,
	sink events.Sink,
	rule pricing.Rule,
	opts Options,
) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		accs:  accs,
		subs:  subs,
		money: money,
		refs:  refs,
		runs:  runs,
		vpn:   vpn,
		sink:  sink,
		rule:  rule,
		opts:  opts,
		locks: NewKeyedLocks(),
	}
}

// RunTick выполняет одну сверку за календарный день момента now.
// Повторный вызов за тот же день — no-op: в reconcile_runs уже есть
// завершённый запуск. Упавший посреди тика запуск переиспользуется,
// и уже списанные аккаунты второй раз не трогают деньги.
func (e *Engine) RunTick(ctx context.Context, now time.Time) error {
	date := common.PeriodDate(now)

	runID, ok, err := e.runs.Start(ctx, date)
	if err != nil {
		return err
	}
	if !ok {
		log.WithField("date", common.PeriodKey(now)).Debug("Сверка за этот день уже завершена")
		return nil
	}

	accs, err := e.accs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки аккаунтов: %w", err)
	}

	log.WithFields(log.Fields{
		"date":     common.PeriodKey(now),
		"accounts": len(accs),
	}).Info("Тик сверки начат")

	var processed, failed atomicCounter

	g := &errgroup.Group{}
	g.SetLimit(e.opts.Workers)
	for _, acc := range accs {
		acc := acc
		g.Go(func() error {
			if err := e.reconcileOne(ctx, now, acc.UserID); err != nil {
				failed.Inc()
				log.WithError(err).WithField("user_id", acc.UserID).Error("Сбой сверки аккаунта")
			} else {
				processed.Inc()
			}
			// Ошибки по аккаунтам не поднимаем: обход всегда доходит до конца
			return nil
		})
	}
	g.Wait()

	if err := e.runs.Finish(ctx, runID, processed.Get(), failed.Get()); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"processed": processed.Get(),
		"failed":    failed.Get(),
	}).Info("Тик сверки завершён")
	return nil
}

// NeedsCatchUp сообщает, что за сегодняшний день сверка ещё не завершалась.
// Часовой heartbeat зовёт RunTick только в этом случае, поэтому N
// пропущенных дней схлопываются в один догоняющий запуск.
func (e *Engine) NeedsCatchUp(ctx context.Context, now time.Time) (bool, error) {
	done, err := e.runs.HasFinished(ctx, common.PeriodDate(now))
	if err != nil {
		return false, err
	}
	return !done, nil
}

// ForceTransition прогоняет один аккаунт через те же правила переходов
// вне расписания. Используется административным слоем; отдельной
// таблицы переходов для админки не существует намеренно.
func (e *Engine) ForceTransition(ctx context.Context, userID int64, now time.Time) error {
	if _, err := e.accs.GetByUserID(ctx, userID); err != nil {
		return err
	}
	sub, err := e.subs.Get(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrSubscriptionNotFound) {
		return err
	}
	if sub != nil && sub.NeedsReview {
		// Подписку в ручном разборе не гоняем даже принудительно:
		// сначала оператор снимает пометку
		return common.ErrNeedsReview
	}
	return e.reconcileOne(ctx, now, userID)
}

// reconcileOne обрабатывает один аккаунт под персональным замком,
// с таймаутом и изоляцией паник.
func (e *Engine) reconcileOne(ctx context.Context, now time.Time, userID int64) (err error) {
	unlock := e.locks.Acquire(userID)
	defer unlock()

	if e.opts.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.AccountTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника при сверке user_id=%d: %v", userID, r)
		}
	}()

	return e.step(ctx, now, userID)
}

// step — один проход таблицы переходов для одного аккаунта.
func (e *Engine) step(ctx context.Context, now time.Time, userID int64) error {
	acc, err := e.accs.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	sub, err := e.subs.Get(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrSubscriptionNotFound) {
		return err
	}

	status := subscription.StatusUnprovisioned
	if sub != nil {
		if sub.NeedsReview {
			// Автоматика по таким аккаунтам выключена до решения оператора
			log.WithField("user_id", userID).Warn("Подписка ожидает ручного разбора, тик пропущен")
			return nil
		}
		status = sub.Status
	}

	// Баланс читаем свежим: пополнения могли прийти после загрузки списка
	balance, err := e.money.Balance(ctx, userID)
	if err != nil {
		return err
	}

	d := subscription.Decide(status, balance, e.rule)

	log.WithFields(log.Fields{
		"user_id": userID,
		"status":  status,
		"balance": balance,
		"action":  d.Action,
	}).Debug("Решение тика")

	switch d.Action {
	case subscription.ActionNone:
		if sub != nil {
			return e.subs.SetState(ctx, userID, status, sub.RemoteRef, sub.ExpiresAt, now)
		}
		return nil
	case subscription.ActionProvision:
		return e.provision(ctx, now, acc, balance)
	case subscription.ActionExtend:
		return e.extend(ctx, now, acc, sub, balance)
	case subscription.ActionSuspend:
		return e.suspend(ctx, now, acc, sub)
	case subscription.ActionResume:
		return e.resume(ctx, now, acc, sub, balance)
	}
	return nil
}

// provision создаёт удалённый аккаунт со сроком, который покупает весь
// текущий баланс. Денег НЕ списывает: первый день оплатит завтрашний тик.
// Перед созданием ищем аккаунт по логину — если прошлый тик упал между
// удалённым созданием и локальной записью, найдём его, а не создадим второй.
func (e *Engine) provision(ctx context.Context, now time.Time, acc *accounts.Account, balance int64) error {
	days := e.rule.DaysForBalance(balance)
	expiry := now.AddDate(0, 0, days)

	ref, found, err := e.vpn.FindByUsername(ctx, acc.VPNUsername)
	if err != nil {
		return err
	}
	if found {
		// Аккаунт уже есть — выравниваем его под наше состояние
		if err := e.vpn.SetStatus(ctx, ref, true); err != nil {
			return e.remoteFailure(ctx, acc.UserID, err)
		}
		if err := e.vpn.SetExpiry(ctx, ref, expiry); err != nil {
			return e.remoteFailure(ctx, acc.UserID, err)
		}
	} else {
		ref, err = e.vpn.CreateAccount(ctx, acc.VPNUsername, expiry, true)
		if err != nil {
			return err
		}
	}

	if err := e.subs.Ensure(ctx, acc.UserID); err != nil {
		return err
	}
	if err := e.subs.SetState(ctx, acc.UserID, subscription.StatusActive, ref, &expiry, now); err != nil {
		return err
	}

	e.confirmReferral(ctx, acc.UserID)

	e.sink.Publish(ctx, events.Provisioned{UserID: acc.UserID, Days: days})
	e.maybeLowBalance(ctx, acc.UserID, balance)
	return nil
}

// extend — ежедневное продление: сначала абсолютный срок на удалённой
// стороне, затем списание дня. Если списание оказалось повтором
// (тик перезапущен после падения), срок корректируется по фактическому
// остатку из ранее записанной проводки.
func (e *Engine) extend(ctx context.Context, now time.Time, acc *accounts.Account, sub *subscription.Subscription, balance int64) error {
	predicted := balance - e.rule.DailyCost()
	expiry := now.AddDate(0, 0, e.rule.DaysForBalance(predicted))

	if err := e.vpn.SetExpiry(ctx, sub.RemoteRef, expiry); err != nil {
		return e.remoteFailure(ctx, acc.UserID, err)
	}

	entry, err := e.debitDaily(ctx, now, acc.UserID)
	if err != nil {
		return err
	}

	if entry.BalanceAfter != predicted {
		// Повтор тика: деньги уже списаны раньше, пересчитываем срок
		expiry = now.AddDate(0, 0, e.rule.DaysForBalance(entry.BalanceAfter))
		if err := e.vpn.SetExpiry(ctx, sub.RemoteRef, expiry); err != nil {
			return e.remoteFailure(ctx, acc.UserID, err)
		}
	}

	if err := e.subs.SetState(ctx, acc.UserID, subscription.StatusActive, sub.RemoteRef, &expiry, now); err != nil {
		return err
	}

	e.confirmReferral(ctx, acc.UserID)

	days := e.rule.DaysForBalance(entry.BalanceAfter)
	e.sink.Publish(ctx, events.Extended{UserID: acc.UserID, Days: days})
	e.maybeLowBalance(ctx, acc.UserID, entry.BalanceAfter)
	return nil
}

// suspend отключает удалённый аккаунт. Списания нет: условие
// «не хватает» проверено до каких-либо движений денег.
func (e *Engine) suspend(ctx context.Context, now time.Time, acc *accounts.Account, sub *subscription.Subscription) error {
	if err := e.vpn.SetStatus(ctx, sub.RemoteRef, false); err != nil {
		return e.remoteFailure(ctx, acc.UserID, err)
	}
	if err := e.subs.SetState(ctx, acc.UserID, subscription.StatusSuspended, sub.RemoteRef, sub.ExpiresAt, now); err != nil {
		return err
	}
	e.sink.Publish(ctx, events.Suspended{UserID: acc.UserID})
	return nil
}

// resume включает аккаунт обратно и выставляет срок заново от текущего
// баланса. Абсолютная установка срока здесь принципиальна: она
// самовосстанавливает любой дрейф локальных и удалённых часов,
// накопившийся за время простоя.
func (e *Engine) resume(ctx context.Context, now time.Time, acc *accounts.Account, sub *subscription.Subscription, balance int64) error {
	predicted := balance - e.rule.DailyCost()
	expiry := now.AddDate(0, 0, e.rule.DaysForBalance(predicted))

	if err := e.vpn.SetStatus(ctx, sub.RemoteRef, true); err != nil {
		return e.remoteFailure(ctx, acc.UserID, err)
	}
	if err := e.vpn.SetExpiry(ctx, sub.RemoteRef, expiry); err != nil {
		return e.remoteFailure(ctx, acc.UserID, err)
	}

	entry, err := e.debitDaily(ctx, now, acc.UserID)
	if err != nil {
		return err
	}

	if entry.BalanceAfter != predicted {
		expiry = now.AddDate(0, 0, e.rule.DaysForBalance(entry.BalanceAfter))
		if err := e.vpn.SetExpiry(ctx, sub.RemoteRef, expiry); err != nil {
			return e.remoteFailure(ctx, acc.UserID, err)
		}
	}

	if err := e.subs.SetState(ctx, acc.UserID, subscription.StatusActive, sub.RemoteRef, &expiry, now); err != nil {
		return err
	}

	e.confirmReferral(ctx, acc.UserID)

	days := e.rule.DaysForBalance(entry.BalanceAfter)
	e.sink.Publish(ctx, events.Reactivated{UserID: acc.UserID, Days: days})
	e.maybeLowBalance(ctx, acc.UserID, entry.BalanceAfter)
	return nil
}

// debitDaily списывает стоимость одного дня с ключом идемпотентности
// «аккаунт + календарный день». Повтор за тот же день вернёт прежнюю
// проводку и не тронет баланс.
func (e *Engine) debitDaily(ctx context.Context, now time.Time, userID int64) (*ledger.Entry, error) {
	return e.money.Debit(ctx, userID, e.rule.DailyCost(),
		ledger.CategoryDebit,
		fmt.Sprintf("Оплата доступа за %s", common.PeriodKey(now)),
		common.DebitKey(userID, now))
}

// confirmReferral подтверждает реферала, пока подписка активна.
// Зовётся на каждом активном тике: подтверждённое ребро — дешёвый no-op,
// а сорвавшееся начисление бонуса догоняет следующий тик. Активацию
// из-за бонуса не откатываем.
func (e *Engine) confirmReferral(ctx context.Context, userID int64) {
	if err := e.refs.ConfirmAndReward(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось подтвердить реферала")
	}
}

// remoteFailure разбирает ошибку VPN-сервиса. Пропавший аккаунт — порча
// данных: помечаем для оператора и выключаем автоматику по подписке.
// Временный сбой просто уходит наверх: состояние остаётся несведённым,
// следующий тик попробует снова.
func (e *Engine) remoteFailure(ctx context.Context, userID int64, err error) error {
	if errors.Is(err, provisioning.ErrRemoteNotFound) {
		if markErr := e.subs.MarkNeedsReview(ctx, userID, true); markErr != nil {
			log.WithError(markErr).WithField("user_id", userID).Error("Не удалось пометить подписку")
		}
		e.sink.Publish(ctx, events.NeedsReview{
			UserID: userID,
			Reason: "удалённый аккаунт не найден, возможно удалён вручную",
		})
	}
	return err
}

// maybeLowBalance шлёт предупреждение, когда остатка мало.
func (e *Engine) maybeLowBalance(ctx context.Context, userID, balance int64) {
	days := e.rule.DaysForBalance(balance)
	if days < e.opts.LowBalanceDays {
		e.sink.Publish(ctx, events.LowBalance{UserID: userID, Balance: balance, DaysLeft: days})
	}
}
