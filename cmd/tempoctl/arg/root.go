package arg

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tempo-bot/internal/attendance"
	"tempo-bot/internal/config"
	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/prereg"
	"tempo-bot/internal/tracker"
	"tempo-bot/internal/utils"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "tempoctl",
	Short: "tempoctl is the maintenance tool for the tempo bot",
	Long: `tempoctl works directly with the bot storage: migrations, reports and resets.
Commands that modify data should be run while the bot is stopped.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// env - компоненты бота поверх настроенного хранилища
type env struct {
	cfg     *config.Config
	log     logger.Logger
	loc     *time.Location
	store   database.Store
	tracker *tracker.Tracker
	ledger  *attendance.Ledger
	queue   *prereg.Queue
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logLevel, cfg.LogFormat)

	store, err := database.Open(database.Options{
		Driver:      cfg.StorageDriver,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	loc := utils.LoadLocation(cfg.Timezone)
	tr := tracker.New(ctx, store, log, tracker.WithMaxPauses(cfg.Limits.MaxPauses))
	return &env{
		cfg:     cfg,
		log:     log,
		loc:     loc,
		store:   store,
		tracker: tr,
		ledger:  attendance.New(ctx, store, log, loc, attendance.WithCaps(cfg.Limits.DailyAttendance, cfg.Limits.WeeklyAttendance)),
		queue:   prereg.New(ctx, tr, store, log),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// withEnv открывает хранилище на время команды
func withEnv(fn func(cmd *cobra.Command, e *env) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e)
	}
}
