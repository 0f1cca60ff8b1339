package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var fileNames = map[Collection]string{
	CollectionTrackedUsers:     "user_times.json",
	CollectionAttendance:       "attendance_data.json",
	CollectionPreregistrations: "preregistrations.json",
}

// FileStore хранит каждую коллекцию в отдельном JSON-файле
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(c Collection) (string, error) {
	name, ok := fileNames[c]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", c)
	}
	return filepath.Join(s.dir, name), nil
}

// Load читает коллекцию. Отсутствующий файл - пустая коллекция.
func (s *FileStore) Load(_ context.Context, c Collection) (map[string]json.RawMessage, error) {
	path, err := s.path(c)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	docs := map[string]json.RawMessage{}
	if len(data) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

// Replace атомарно перезаписывает файл коллекции через временный файл
func (s *FileStore) Replace(_ context.Context, c Collection, docs map[string]json.RawMessage) error {
	path, err := s.path(c)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = map[string]json.RawMessage{}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
