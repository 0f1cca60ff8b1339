package database

import (
	"fmt"
	"time"
)

// Migration представляет миграцию базы данных
type Migration struct {
	Version     int
	Description string
	Up          []string
	Down        []string
}

// Migrations содержит все миграции в порядке версий
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Create collection tables",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS tracked_users (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS attendance_records (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS preregistrations (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
		Down: []string{
			`DROP TABLE IF EXISTS preregistrations`,
			`DROP TABLE IF EXISTS attendance_records`,
			`DROP TABLE IF EXISTS tracked_users`,
		},
	},
	{
		Version:     2,
		Description: "Add updated_at indexes",
		Up: []string{
			`CREATE INDEX IF NOT EXISTS idx_tracked_users_updated_at ON tracked_users (updated_at)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_records_updated_at ON attendance_records (updated_at)`,
		},
		Down: []string{
			`DROP INDEX IF EXISTS idx_attendance_records_updated_at`,
			`DROP INDEX IF EXISTS idx_tracked_users_updated_at`,
		},
	},
}

// MigrationRecord представляет запись о выполненной миграции
type MigrationRecord struct {
	Version     int
	Description string
	AppliedAt   string
}

// CreateMigrationsTable создает таблицу для отслеживания миграций
func (d *Database) CreateMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`

	if _, err := d.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations получает список уже примененных миграций
func (d *Database) GetAppliedMigrations() ([]MigrationRecord, error) {
	rows, err := d.db.Query(`SELECT version, description, applied_at FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []MigrationRecord
	for rows.Next() {
		var migration MigrationRecord
		if err := rows.Scan(&migration.Version, &migration.Description, &migration.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, migration)
	}
	return migrations, rows.Err()
}

// ApplyMigration применяет миграцию
func (d *Database) ApplyMigration(migration Migration) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Откатываем в случае ошибки

	for _, stmt := range migration.Up {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
	}

	// Записываем информацию о примененной миграции
	insertQuery := d.rebind(`INSERT INTO migrations (version, description, applied_at) VALUES (?, ?, ?)`)
	if _, err := tx.Exec(insertQuery, migration.Version, migration.Description, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}

// RollbackMigration откатывает последнюю примененную миграцию
func (d *Database) RollbackMigration() (int, error) {
	applied, err := d.GetAppliedMigrations()
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	last := applied[len(applied)-1].Version

	var target *Migration
	for i := range Migrations {
		if Migrations[i].Version == last {
			target = &Migrations[i]
		}
	}
	if target == nil {
		return 0, fmt.Errorf("migration %d is not known", last)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range target.Down {
		if _, err := tx.Exec(stmt); err != nil {
			return 0, fmt.Errorf("failed to roll back migration %d: %w", last, err)
		}
	}
	if _, err := tx.Exec(d.rebind(`DELETE FROM migrations WHERE version = ?`), last); err != nil {
		return 0, fmt.Errorf("failed to unrecord migration %d: %w", last, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rollback %d: %w", last, err)
	}
	return last, nil
}

// RunMigrations выполняет все необходимые миграции
func (d *Database) RunMigrations() error {
	if err := d.CreateMigrationsTable(); err != nil {
		return err
	}

	appliedMigrations, err := d.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedMap := make(map[int]bool)
	for _, migration := range appliedMigrations {
		appliedMap[migration.Version] = true
	}

	for _, migration := range Migrations {
		if appliedMap[migration.Version] {
			d.logger.Debugf("Migration %d already applied, skipping", migration.Version)
			continue
		}

		d.logger.Infof("Applying migration %d: %s", migration.Version, migration.Description)
		if err := d.ApplyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		d.logger.Infof("Successfully applied migration %d", migration.Version)
	}

	return nil
}
