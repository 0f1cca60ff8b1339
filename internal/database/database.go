package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tempo-bot/internal/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database хранит коллекции в SQL-таблицах (PostgreSQL или SQLite)
type Database struct {
	db      *sql.DB
	dialect string
	logger  logger.Logger
}

// New открывает соединение. driver: "postgres" или "sqlite"
func New(driver, dsn string, log logger.Logger) (*Database, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if log == nil {
		log = logger.Discard()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настраиваем пул соединений
	if driver == "sqlite" {
		// SQLite не любит параллельных писателей
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	d := &Database{db: db, dialect: driver, logger: log}
	if err := d.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// rebind заменяет плейсхолдеры ? на $n для PostgreSQL
func (d *Database) rebind(query string) string {
	if d.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func tableFor(c Collection) (string, error) {
	for _, known := range Collections() {
		if known == c {
			return string(c), nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", c)
}

// Load читает все записи коллекции
func (d *Database) Load(ctx context.Context, c Collection) (map[string]json.RawMessage, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT id, payload FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		docs[id] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return docs, nil
}

// Replace заменяет содержимое коллекции в одной транзакции
func (d *Database) Replace(ctx context.Context, c Collection, docs map[string]json.RawMessage) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Откатываем в случае ошибки

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, d.rebind(fmt.Sprintf("INSERT INTO %s (id, payload, updated_at) VALUES (?, ?, ?)", table)))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for id, payload := range docs {
		if _, err := stmt.ExecContext(ctx, id, string(payload), now); err != nil {
			return fmt.Errorf("failed to insert %s into %s: %w", id, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

// Stats возвращает количество записей по коллекциям
func (d *Database) Stats(ctx context.Context) (map[Collection]int, error) {
	stats := make(map[Collection]int)
	for _, c := range Collections() {
		var count int
		if err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c, err)
		}
		stats[c] = count
	}
	return stats, nil
}
