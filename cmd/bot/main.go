// Package main — точка входа движка подписок.
// Загружает конфигурацию, инициализирует приложение и запускает
// планировщик сверки. Поддерживает graceful shutdown по SIGINT/SIGTERM:
// благодаря идемпотентности списаний процесс можно прервать в любой
// точке тика без риска двойного списания.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/app"
	"nullvpn.ru/vpn-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Движок подписок запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Устанавливаем уровень логирования из конфига
	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.DB.Close()

	// Запускаем планировщик (ежедневный тик + heartbeat + аудит)
	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	log.Info("=== Движок готов к работе ===")

	// Ждём сигнала остановки (Ctrl+C, docker stop)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("Получен сигнал %s, останавливаемся...", sig)

	cancel()

	log.Info("=== Движок остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
