package arg

import (
	"fmt"

	"github.com/spf13/cobra"

	"tempo-bot/internal/config"
	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations or roll back the latest one",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.StorageDriver != "postgres" && cfg.StorageDriver != "sqlite" {
			return fmt.Errorf("storage driver %q has no migrations", cfg.StorageDriver)
		}

		// New применяет все ожидающие миграции при подключении
		db, err := database.New(cfg.StorageDriver, cfg.DatabaseURL, logger.New(logLevel, cfg.LogFormat))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if migrateDown {
			version, err := db.RollbackMigration()
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Fprintln(out, "Nothing to roll back")
				return nil
			}
			fmt.Fprintf(out, "Rolled back migration %d\n", version)
			return nil
		}

		applied, err := db.GetAppliedMigrations()
		if err != nil {
			return err
		}
		for _, m := range applied {
			fmt.Fprintf(out, "%3d  %-40s %s\n", m.Version, m.Description, m.AppliedAt)
		}
		fmt.Fprintln(out, "All migrations completed successfully")

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range database.Collections() {
			fmt.Fprintf(out, "%-20s %d records\n", c, stats[c])
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the latest applied migration")
	rootCmd.AddCommand(migrateCmd)
}
