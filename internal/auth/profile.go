// Package auth tracks the health of model API credentials. Keys are
// resolved from the environment at startup and never written to disk;
// only usage state (cooldowns, error counts) persists across runs.
package auth

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type UsageStats struct {
	LastUsed      time.Time `yaml:"last_used,omitempty"`
	CooldownUntil time.Time `yaml:"cooldown_until,omitempty"`
	DisabledUntil time.Time `yaml:"disabled_until,omitempty"`
	ErrorCount    int       `yaml:"error_count,omitempty"`
}

// Profile is the credential state for one provider.
type Profile struct {
	ProviderID string     `yaml:"provider_id"`
	Key        string     `yaml:"-"`
	Stats      UsageStats `yaml:"usage_stats,omitempty"`
}

func (p *Profile) InCooldown(now time.Time) bool {
	return !p.Stats.CooldownUntil.IsZero() && now.Before(p.Stats.CooldownUntil)
}

func (p *Profile) IsDisabled(now time.Time) bool {
	return !p.Stats.DisabledUntil.IsZero() && now.Before(p.Stats.DisabledUntil)
}

func (p *Profile) Available(now time.Time) bool {
	return !p.InCooldown(now) && !p.IsDisabled(now)
}

const maskSuffix = "***"

// MaskedKey returns the credential with most characters replaced by
// ***. Shows at most the first 6 characters for identification.
func (p *Profile) MaskedKey() string {
	if p.Key == "" {
		return ""
	}
	visible := 6
	if len(p.Key) <= visible {
		return maskSuffix
	}
	return p.Key[:visible] + maskSuffix
}

// Store holds one credential profile per provider plus the path of
// the runtime state file.
type Store struct {
	path     string
	profiles map[string]*Profile
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		profiles: make(map[string]*Profile),
	}
}

func (s *Store) Add(p *Profile) {
	s.profiles[p.ProviderID] = p
}

func (s *Store) Get(providerID string) *Profile {
	return s.profiles[providerID]
}

// All returns the profiles sorted by provider id.
func (s *Store) All() []*Profile {
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.profiles[id])
	}
	return out
}

// Load merges persisted usage state into the registered profiles.
// Providers in the state file that are no longer configured are
// dropped; keys never come from disk.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading credential state: %w", err)
	}
	saved := make(map[string]*Profile)
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("parsing credential state: %w", err)
	}
	for id, sp := range saved {
		if p, ok := s.profiles[id]; ok {
			p.Stats = sp.Stats
		}
	}
	return nil
}

func (s *Store) Save() error {
	data, err := yaml.Marshal(s.profiles)
	if err != nil {
		return fmt.Errorf("marshaling credential state: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}
