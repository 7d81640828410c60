// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Чат, в который дублируются алерты для операторов (needs_review и т.п.)
	AdminChatID int64 `envconfig:"ADMIN_CHAT_ID" default:"0"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"vpn_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Тарификация ---
	// Стоимость одного дня доступа в минимальных единицах валюты.
	// Единственное место, где живёт курс «деньги → дни» (см. features/pricing).
	SubDailyCost int64 `envconfig:"SUB_DAILY_COST" default:"4"`
	// Приветственный бонус новому пользователю (0 = отключён)
	WelcomeBonus int64 `envconfig:"WELCOME_BONUS" default:"20"`
	// Бонус пригласившему после первой активации приглашённого
	ReferralBonus int64 `envconfig:"REFERRAL_BONUS" default:"20"`
	// При остатке меньше этого числа дней шлём предупреждение о низком балансе
	LowBalanceDays int `envconfig:"LOW_BALANCE_DAYS" default:"3"`

	// --- Provisioning (внешний VPN-сервис) ---
	ProvisioningBaseURL string        `envconfig:"PROVISIONING_BASE_URL" required:"true"`
	ProvisioningToken   string        `envconfig:"PROVISIONING_TOKEN" required:"true"`
	ProvisioningTimeout time.Duration `envconfig:"PROVISIONING_TIMEOUT" default:"15s"`
	// Ограничения ретраев: число попыток и стартовая задержка backoff
	ProvisioningRetries   int           `envconfig:"PROVISIONING_RETRIES" default:"4"`
	ProvisioningBaseDelay time.Duration `envconfig:"PROVISIONING_BASE_DELAY" default:"500ms"`

	// --- Reconcile ---
	// Сколько аккаунтов сверяем параллельно за один тик
	ReconcileWorkers int `envconfig:"RECONCILE_WORKERS" default:"8"`
	// Общий таймаут обработки одного аккаунта внутри тика
	ReconcileAccountTimeout time.Duration `envconfig:"RECONCILE_ACCOUNT_TIMEOUT" default:"90s"`
	// Cron-выражение ежедневного тика (по таймзоне APP_TIMEZONE)
	ReconcileCronSpec string `envconfig:"RECONCILE_CRON_SPEC" default:"10 3 * * *"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.SubDailyCost <= 0 {
		return fmt.Errorf("SUB_DAILY_COST должен быть > 0")
	}
	if c.WelcomeBonus < 0 || c.ReferralBonus < 0 {
		return fmt.Errorf("бонусы не могут быть отрицательными")
	}
	if c.ReconcileWorkers <= 0 {
		return fmt.Errorf("RECONCILE_WORKERS должен быть > 0")
	}
	if c.ProvisioningRetries <= 0 {
		return fmt.Errorf("PROVISIONING_RETRIES должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
