package rulepack

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Lock is the content of rulepacks.lock: each fetched pack pinned to
// the commit it was cloned at.
type Lock struct {
	Packs map[string]LockEntry `yaml:"packs"`
}

// LockEntry records the resolved ref and checkout path for one pack.
type LockEntry struct {
	GitHub   string `yaml:"github"`
	Ref      string `yaml:"ref"`
	Resolved string `yaml:"resolved"` // commit SHA
	Path     string `yaml:"path"`     // pack dir, relative to state dir or absolute
}

func lockPath(stateDir string) string {
	return filepath.Join(stateDir, "rulepacks.lock")
}

// LoadLock reads rulepacks.lock from the state directory.
func LoadLock(stateDir string) (*Lock, error) {
	data, err := os.ReadFile(lockPath(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &Lock{Packs: make(map[string]LockEntry)}, nil
		}
		return nil, fmt.Errorf("read rulepacks.lock: %w", err)
	}
	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse rulepacks.lock: %w", err)
	}
	if lock.Packs == nil {
		lock.Packs = make(map[string]LockEntry)
	}
	return &lock, nil
}

// SaveLock writes rulepacks.lock to the state directory.
func SaveLock(stateDir string, lock *Lock) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := yaml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("marshal rulepacks.lock: %w", err)
	}
	return os.WriteFile(lockPath(stateDir), data, 0644)
}
