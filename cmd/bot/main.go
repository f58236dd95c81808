// Package main — точка входа бота шахты.
// Поднимает конфигурацию и приложение, открывает шахту и
// аккуратно закрывает её по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/app"
	"serotonyl.ru/mining-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Шахта открывается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Уровень логирования берём из конфига, формат уже настроен
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// БД, миграции, сеть, сервисы, обработчики — всё собирается тут
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось собрать приложение")
	}
	defer application.DB.Close()

	// Фоновые задачи: чистка протухших наград, вечерний топ сезона
	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go application.Bot.Start(ctx)

	log.Info("=== Шахта принимает игроков ===")

	sig := <-quit
	log.Infof("Получен сигнал %s, закрываем шахту...", sig)

	// Отмена контекста гасит polling, тикеры сессий и планировщик
	cancel()

	log.Info("=== Шахта закрыта ===")
}

// setupLogging задаёт формат логов до чтения конфигурации.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
