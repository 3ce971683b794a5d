// Package config loads the YAML configuration file and fills in the
// defaults. Secrets are referenced as ${VAR} and resolved from the
// environment at load time, never stored in the file itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/provider"
)

type Config struct {
	Models    ModelsConfig    `yaml:"models"`
	Auth      AuthConfig      `yaml:"auth"`
	AWS       AWSConfig       `yaml:"aws"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Rulepacks RulepacksConfig `yaml:"rulepacks"`
	Notify    NotifyConfig    `yaml:"notify"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Ops       OpsConfig       `yaml:"ops"`
	Logging   logging.Config  `yaml:"logging"`
}

type ModelsConfig struct {
	// Primary is the provider/model ref extraction runs on first.
	Primary     string                    `yaml:"primary"`
	Fallbacks   []string                  `yaml:"fallbacks"`
	Temperature *float64                  `yaml:"temperature"`
	MaxTokens   int                       `yaml:"max_tokens"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	BaseURL string            `yaml:"base_url"`
	APIKey  string            `yaml:"api_key"`
	API     string            `yaml:"api"`
	Timeout string            `yaml:"timeout"`
	Models  []ModelDefinition `yaml:"models"`
}

type ModelDefinition struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	ContextWindow int    `yaml:"context_window"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type AuthConfig struct {
	StatePath string         `yaml:"state_path"`
	Cooldowns CooldownConfig `yaml:"cooldowns"`
}

type CooldownConfig struct {
	Initial    string `yaml:"initial"`
	Max        string `yaml:"max"`
	Multiplier int    `yaml:"multiplier"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	// Endpoint overrides the API endpoint, for localstack and tests.
	Endpoint      string `yaml:"endpoint"`
	ImageCacheTTL string `yaml:"image_cache_ttl"`
}

type PipelineConfig struct {
	// ClarificationLimit caps how many times one session may ask the
	// requester for missing parameters before giving up.
	ClarificationLimit  int    `yaml:"clarification_limit"`
	ConfirmationTimeout string `yaml:"confirmation_timeout"`
	MaxAttempts         int    `yaml:"max_attempts"`
	AttemptTimeout      string `yaml:"attempt_timeout"`
	MaxInstanceCount    int    `yaml:"max_instance_count"`
}

type StorageConfig struct {
	Driver  string `yaml:"driver"` // sqlite (default) or postgres
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

type RedisConfig struct {
	// Addr empty means no redis: idempotency tokens and the image
	// cache fall back to process-local storage.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TokenTTL string `yaml:"token_ttl"`
}

type RulepacksConfig struct {
	Dir   string     `yaml:"dir"`
	Packs []PackSpec `yaml:"packs"`
}

type PackSpec struct {
	Name   string `yaml:"name"`
	GitHub string `yaml:"github"`
	Ref    string `yaml:"ref"`
}

// UnmarshalYAML accepts either a bare pack name or a full mapping.
func (p *PackSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		return nil
	}
	type rawPack PackSpec
	var raw rawPack
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = PackSpec(raw)
	return nil
}

type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Events  []string          `yaml:"events"`
	Headers map[string]string `yaml:"headers"`
}

type SweeperConfig struct {
	Schedule       string `yaml:"schedule"`
	RetainTerminal string `yaml:"retain_terminal"`
}

type OpsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// expandEnv substitutes ${VAR} references. Unset variables are left
// untouched so a misconfigured secret is visible instead of silently
// empty.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandAll(cfg *Config) {
	for name, p := range cfg.Models.Providers {
		p.BaseURL = expandEnv(p.BaseURL)
		p.APIKey = expandEnv(p.APIKey)
		cfg.Models.Providers[name] = p
	}
	cfg.AWS.Region = expandEnv(cfg.AWS.Region)
	cfg.AWS.AccessKeyID = expandEnv(cfg.AWS.AccessKeyID)
	cfg.AWS.SecretAccessKey = expandEnv(cfg.AWS.SecretAccessKey)
	cfg.AWS.SessionToken = expandEnv(cfg.AWS.SessionToken)
	cfg.AWS.Endpoint = expandEnv(cfg.AWS.Endpoint)
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)
	cfg.Storage.DataDir = expandEnv(cfg.Storage.DataDir)
	cfg.Redis.Addr = expandEnv(cfg.Redis.Addr)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	for i := range cfg.Notify.Webhooks {
		w := &cfg.Notify.Webhooks[i]
		w.URL = expandEnv(w.URL)
		for k, v := range w.Headers {
			w.Headers[k] = expandEnv(v)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.ImageCacheTTL == "" {
		cfg.AWS.ImageCacheTTL = "1h"
	}
	if cfg.Pipeline.ClarificationLimit <= 0 {
		cfg.Pipeline.ClarificationLimit = 3
	}
	if cfg.Pipeline.ConfirmationTimeout == "" {
		cfg.Pipeline.ConfirmationTimeout = "60s"
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Storage.DataDir = filepath.Join(home, ".cloudwright")
		}
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" && cfg.Storage.DataDir != "" {
		cfg.Storage.DSN = filepath.Join(cfg.Storage.DataDir, "sessions.db")
	}
	if cfg.Auth.StatePath == "" && cfg.Storage.DataDir != "" {
		cfg.Auth.StatePath = filepath.Join(cfg.Storage.DataDir, "credentials.yaml")
	}
	if cfg.Auth.Cooldowns.Initial == "" {
		cfg.Auth.Cooldowns.Initial = "1m"
	}
	if cfg.Auth.Cooldowns.Max == "" {
		cfg.Auth.Cooldowns.Max = "1h"
	}
	if cfg.Auth.Cooldowns.Multiplier <= 0 {
		cfg.Auth.Cooldowns.Multiplier = 5
	}
	if cfg.Redis.TokenTTL == "" {
		cfg.Redis.TokenTTL = "24h"
	}
	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = "@every 1m"
	}
	if cfg.Sweeper.RetainTerminal == "" {
		cfg.Sweeper.RetainTerminal = "168h"
	}
	if cfg.Ops.Addr == "" {
		cfg.Ops.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandAll(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Validate catches the misconfigurations that would otherwise only
// surface mid-session.
func (c *Config) Validate() error {
	if c.Models.Primary != "" {
		if _, err := provider.ParseModelRef(c.Models.Primary); err != nil {
			return fmt.Errorf("models.primary: %w", err)
		}
	}
	for i, f := range c.Models.Fallbacks {
		if _, err := provider.ParseModelRef(f); err != nil {
			return fmt.Errorf("models.fallbacks[%d]: %w", i, err)
		}
	}
	for name, p := range c.Models.Providers {
		switch p.API {
		case "", provider.APIOpenAI, provider.APIAnthropic:
		default:
			return fmt.Errorf("providers.%s: unknown api %q", name, p.API)
		}
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for postgres")
	}
	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("notify.webhooks[%d]: url is required", i)
		}
	}
	return nil
}

// Duration parses a duration field, falling back when it is empty or
// malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
