package database

import (
	"context"
	"encoding/json"
	"fmt"

	"tempo-bot/internal/logger"
)

// Collection - именованный набор записей, сохраняемый целиком
type Collection string

const (
	CollectionTrackedUsers     Collection = "tracked_users"
	CollectionAttendance       Collection = "attendance_records"
	CollectionPreregistrations Collection = "preregistrations"
)

// Collections возвращает все коллекции
func Collections() []Collection {
	return []Collection{CollectionTrackedUsers, CollectionAttendance, CollectionPreregistrations}
}

// Store сохраняет коллекции записей, закодированных в JSON, по ключу пользователя
type Store interface {
	Load(ctx context.Context, c Collection) (map[string]json.RawMessage, error)
	Replace(ctx context.Context, c Collection, docs map[string]json.RawMessage) error
	Close() error
}

// Options - параметры открытия хранилища
type Options struct {
	Driver      string
	DataDir     string
	DatabaseURL string
}

// Open открывает хранилище по имени драйвера
func Open(opts Options, log logger.Logger) (Store, error) {
	switch opts.Driver {
	case "", "file":
		fs, err := NewFileStore(opts.DataDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "postgres", "sqlite":
		db, err := New(opts.Driver, opts.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// Encode кодирует записи коллекции
func Encode[T any](items map[string]T) (map[string]json.RawMessage, error) {
	docs := make(map[string]json.RawMessage, len(items))
	for id, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", id, err)
		}
		docs[id] = data
	}
	return docs, nil
}

// Decode раскодирует записи коллекции. Испорченные записи пропускаются и возвращаются отдельно.
func Decode[T any](docs map[string]json.RawMessage) (map[string]T, map[string]error) {
	items := make(map[string]T, len(docs))
	var failed map[string]error
	for id, raw := range docs {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[id] = err
			continue
		}
		items[id] = item
	}
	return items, failed
}
