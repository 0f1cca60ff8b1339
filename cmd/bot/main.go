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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"tempo-bot/internal/attendance"
	"tempo-bot/internal/bot"
	"tempo-bot/internal/config"
	"tempo-bot/internal/credits"
	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/metrics"
	"tempo-bot/internal/notify"
	"tempo-bot/internal/prereg"
	"tempo-bot/internal/scheduler"
	"tempo-bot/internal/tracker"
	"tempo-bot/internal/utils"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логгер
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	loc := utils.LoadLocation(cfg.Timezone)

	// Открываем хранилище
	store, err := database.Open(database.Options{
		Driver:      cfg.StorageDriver,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	roster, err := config.LoadRoster(cfg.RosterFile)
	if err != nil {
		logger.Fatalf("Failed to load roster: %v", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.APIToken)
	if err != nil {
		logger.Fatalf("Failed to create Telegram client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr := tracker.New(ctx, store, logger, tracker.WithMaxPauses(cfg.Limits.MaxPauses))
	ledger := attendance.New(ctx, store, logger, loc,
		attendance.WithCaps(cfg.Limits.DailyAttendance, cfg.Limits.WeeklyAttendance))
	queue := prereg.New(ctx, tr, store, logger)
	policy := credits.DefaultPolicy()

	sender := notify.NewTelegramSender(api, map[notify.Kind]int64{
		notify.KindMilestone:        cfg.Chats.Milestones,
		notify.KindPause:            cfg.Chats.Pauses,
		notify.KindUnpause:          cfg.Chats.Pauses,
		notify.KindCancellation:     cfg.Chats.Cancellations,
		notify.KindAutoCancellation: cfg.Chats.Cancellations,
		notify.KindAttendance:       cfg.Chats.Attendance,
		notify.KindAutoLink:         cfg.Chats.Attendance,
		notify.KindActivation:       cfg.Chats.Milestones,
	}, cfg.OwnerID)

	retry := notify.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Notify.MaxAttempts
	retry.BaseDelay = cfg.Notify.BaseDelay
	retry.MaxTimeout = cfg.Notify.MaxTimeout
	dispatcher := notify.NewDispatcher(sender, retry, logger,
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithWorkers(cfg.Notify.Workers),
		notify.WithEmergencyTimeout(cfg.Notify.EmergencyTimeout))

	sched := scheduler.New(scheduler.Deps{
		Tracker:  tr,
		Ledger:   ledger,
		Queue:    queue,
		Members:  roster,
		Notifier: dispatcher,
		Policy:   policy,
	}, cfg.Scheduler, loc, logger)

	b := bot.New(api, cfg, bot.Core{
		Tracker:  tr,
		Ledger:   ledger,
		Queue:    queue,
		Members:  roster,
		Notifier: dispatcher,
		Policy:   policy,
	}, loc, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return b.Start(ctx) })
	g.Go(func() error {
		logger.Infof("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return reloadRoster(ctx, roster, logger) })

	if err := g.Wait(); err != nil {
		logger.Errorf("Bot error: %v", err)
	}
	logger.Info("Shutting down...")
}

// reloadRoster перечитывает файл ролей по SIGHUP
func reloadRoster(ctx context.Context, roster *config.Roster, logger logger.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := roster.Reload(); err != nil {
				logger.Errorf("Failed to reload roster: %v", err)
				continue
			}
			logger.Info("Roster reloaded")
		}
	}
}
