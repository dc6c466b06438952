package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/medreminder/config"
	"github.com/tazhate/medreminder/internal/api"
	"github.com/tazhate/medreminder/internal/bot"
	"github.com/tazhate/medreminder/internal/clients/caldav"
	"github.com/tazhate/medreminder/internal/scheduler"
	"github.com/tazhate/medreminder/internal/service"
	"github.com/tazhate/medreminder/internal/storage"
)

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Store == "json" {
		return storage.NewJSONFile(cfg.DataDir)
	}
	return storage.NewSQLite(cfg.DatabasePath)
}

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.SetLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация storage
	store, err := openStore(cfg)
	if err != nil {
		zap.S().Fatalw("failed to init storage", "store", cfg.Store, "error", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация сервисов
	medicineSvc, err := service.NewMedicineService(ctx, store)
	if err != nil {
		zap.S().Fatalw("failed to load medicines", "error", err)
	}
	reminderSvc := service.NewReminderService(medicineSvc, cfg.Timezone)

	davClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	davClient.SetCalendarID(cfg.CalDAVCalendar)
	calendarSvc := service.NewCalendarService(medicineSvc, davClient, cfg.CalDAVCalendar, cfg.Timezone, cfg.CalDAVAlarm)

	// HTTP API
	handler := api.New(api.Options{
		Username: cfg.APIUsername,
		Password: cfg.APIPassword,
		Timezone: cfg.Timezone,
	}, medicineSvc, calendarSvc).Router()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorw("http server error", "error", err)
		}
	}()

	// Бот и scheduler только при наличии токена
	var sched *scheduler.Scheduler
	var tgBot *bot.Bot
	if cfg.BotEnabled() {
		tgBot, err = bot.New(cfg, medicineSvc, reminderSvc)
		if err != nil {
			zap.S().Fatalw("failed to init bot", "error", err)
		}

		sched = scheduler.New(cfg, reminderSvc)
		sched.SetSender(tgBot)

		go func() {
			if err := sched.Start(ctx); err != nil {
				zap.S().Errorw("scheduler error", "error", err)
			}
		}()

		go func() {
			if err := tgBot.Start(ctx); err != nil {
				zap.S().Errorw("bot error", "error", err)
			}
		}()
	} else {
		zap.S().Info("TELEGRAM_BOT_TOKEN not set, running API only")
	}

	zap.S().Info("MedReminder started")

	// Ожидание сигнала завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zap.S().Info("shutting down")

	// Graceful shutdown
	cancel()
	if sched != nil {
		sched.Stop()
	}
	if tgBot != nil {
		tgBot.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("error stopping http server", "error", err)
	}

	zap.S().Info("MedReminder stopped")
}
