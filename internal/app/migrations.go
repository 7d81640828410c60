// Package app — migrations.go: SQL-миграции, встроенные в код для
// упрощения деплоя. Применяются последовательно по номеру.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/db/postgres"
)

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.InitMigrations(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002Ledger},
		{3, migration003Subscriptions},
		{4, migration004Referrals},
		{5, migration005ReconcileRuns},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    vpn_username VARCHAR(255) UNIQUE NOT NULL,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    bonus_granted BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);
`

var migration002Ledger = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    amount BIGINT NOT NULL,
    category VARCHAR(50) NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    balance_before BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    idempotency_key TEXT UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    CHECK (balance_after = balance_before + amount)
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at DESC);
`

var migration003Subscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES accounts(user_id),
    status VARCHAR(20) NOT NULL DEFAULT 'unprovisioned',
    remote_ref TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMP,
    needs_review BOOLEAN NOT NULL DEFAULT FALSE,
    last_reconciled_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status);
`

var migration004Referrals = `
CREATE TABLE IF NOT EXISTS referrals (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES accounts(user_id),
    referred_id BIGINT UNIQUE NOT NULL REFERENCES accounts(user_id),
    confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    confirmed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
`

var migration005ReconcileRuns = `
CREATE TABLE IF NOT EXISTS reconcile_runs (
    id UUID PRIMARY KEY,
    run_date DATE UNIQUE NOT NULL,
    started_at TIMESTAMP NOT NULL DEFAULT NOW(),
    finished_at TIMESTAMP,
    processed INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0
);
`
