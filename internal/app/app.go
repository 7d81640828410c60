// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// клиент провижена, движок сверки и планировщик.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/config"
	"nullvpn.ru/vpn-bot/internal/db/postgres"
	"nullvpn.ru/vpn-bot/internal/events"
	"nullvpn.ru/vpn-bot/internal/features/accounts"
	"nullvpn.ru/vpn-bot/internal/features/admin"
	"nullvpn.ru/vpn-bot/internal/features/ledger"
	"nullvpn.ru/vpn-bot/internal/features/pricing"
	"nullvpn.ru/vpn-bot/internal/features/referral"
	"nullvpn.ru/vpn-bot/internal/features/subscription"
	"nullvpn.ru/vpn-bot/internal/jobs"
	"nullvpn.ru/vpn-bot/internal/provisioning"
	"nullvpn.ru/vpn-bot/internal/reconcile"
)

// App содержит все компоненты приложения.
type App struct {
	DB        *pgxpool.Pool
	Engine    *reconcile.Engine
	Scheduler *jobs.Scheduler

	Accounts *accounts.Service
	Ledger   *ledger.Service
	Referral *referral.Service
	Admin    *admin.Service
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API (только для уведомлений) ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории ===
	accountRepo := accounts.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	subRepo := subscription.NewRepository(pool)
	referralRepo := referral.NewRepository(pool)
	runRepo := reconcile.NewRunRepository(pool)

	// === 4. Сервисы ===
	rule := pricing.NewRule(cfg.SubDailyCost)
	ledgerService := ledger.NewService(ledgerRepo)
	accountService := accounts.NewService(accountRepo, ledgerService, cfg.WelcomeBonus)
	referralService := referral.NewService(referralRepo, ledgerService, cfg.ReferralBonus)

	// === 5. Клиент провижена ===
	vpnClient := provisioning.NewRESTClient(
		cfg.ProvisioningBaseURL,
		cfg.ProvisioningToken,
		cfg.ProvisioningTimeout,
		provisioning.RetryPolicy{
			MaxAttempts: cfg.ProvisioningRetries,
			BaseDelay:   cfg.ProvisioningBaseDelay,
			MaxDelay:    cfg.ProvisioningTimeout,
			Jitter:      cfg.ProvisioningBaseDelay / 2,
		},
	)

	// === 6. События ===
	sink := events.NewMultiSink(
		events.NewLogSink(),
		events.NewTelegramNotifier(botAPI, cfg.AdminChatID),
	)

	// === 7. Движок сверки ===
	engine := reconcile.NewEngine(
		accountRepo, subRepo, ledgerService, referralService, runRepo,
		vpnClient, sink, rule,
		reconcile.Options{
			Workers:        cfg.ReconcileWorkers,
			AccountTimeout: cfg.ReconcileAccountTimeout,
			LowBalanceDays: cfg.LowBalanceDays,
		},
	)

	adminService := admin.NewService(ledgerService, engine, subRepo, cfg.AdminPasswordHash)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(engine, ledgerService, cfg.ReconcileCronSpec, cfg.AppTimezone)

	return &App{
		DB:        pool,
		Engine:    engine,
		Scheduler: scheduler,
		Accounts:  accountService,
		Ledger:    ledgerService,
		Referral:  referralService,
		Admin:     adminService,
	}, nil
}
