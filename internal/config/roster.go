package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"tempo-bot/internal/models"
)

// rosterFile - формат файла ролей:
//
//	admins = ["111"]
//	extended_time = ["222"]
//
//	[tiers]
//	gold = ["333"]
//	supremos = ["111"]
type rosterFile struct {
	Admins       []string            `toml:"admins"`
	ExtendedTime []string            `toml:"extended_time"`
	Tiers        map[string][]string `toml:"tiers"`
}

// Roster хранит роли участников и умеет перечитывать файл
type Roster struct {
	path string

	mu       sync.RWMutex
	tiers    map[string]models.Tier
	extended map[string]bool
	admins   map[string]bool
}

// LoadRoster читает файл ролей. Отсутствующий файл дает пустой список.
func LoadRoster(path string) (*Roster, error) {
	r := &Roster{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload перечитывает файл ролей
func (r *Roster) Reload() error {
	var file rosterFile
	if r.path != "" {
		if _, err := os.Stat(r.path); err == nil {
			if _, err := toml.DecodeFile(r.path, &file); err != nil {
				return fmt.Errorf("failed to decode roster: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat roster: %w", err)
		}
	}

	tiers := make(map[string]models.Tier)
	for key, ids := range file.Tiers {
		tier, err := models.ParseTier(key)
		if err != nil {
			return fmt.Errorf("roster: %w", err)
		}
		for _, id := range ids {
			// При нескольких ролях побеждает старшая
			if current, ok := tiers[id]; !ok || tier > current {
				tiers[id] = tier
			}
		}
	}

	r.mu.Lock()
	r.tiers = tiers
	r.extended = toSet(file.ExtendedTime)
	r.admins = toSet(file.Admins)
	r.mu.Unlock()
	return nil
}

// Resolve возвращает уровень участника
func (r *Roster) Resolve(_ context.Context, userID string) (models.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.Membership{
		Tier:         r.tiers[userID],
		ExtendedTime: r.extended[userID],
	}, nil
}

func (r *Roster) IsAdmin(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins[userID]
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
