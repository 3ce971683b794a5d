package config

import (
	"os"
	"testing"
	"time"
)

const testYAML = `
models:
  primary: anthropic/claude-sonnet-4-20250514
  fallbacks:
    - openai/gpt-4o
  temperature: 0
  max_tokens: 1024
  providers:
    anthropic:
      api_key: "${ANTHROPIC_API_KEY}"
      api: anthropic-messages
      timeout: 30s
      models:
        - id: claude-sonnet-4-20250514
          name: Claude Sonnet 4
          context_window: 200000
          max_tokens: 64000
    openai:
      api_key: "${OPENAI_API_KEY}"
      api: openai-completions
    ollama:
      base_url: "http://localhost:11434/v1"
      api: openai-completions
      models:
        - id: llama3
          name: Llama 3 8B
          context_window: 8192

auth:
  cooldowns:
    initial: "1m"
    max: "1h"
    multiplier: 5

aws:
  region: eu-west-1
  access_key_id: "${AWS_ACCESS_KEY_ID}"
  secret_access_key: "${AWS_SECRET_ACCESS_KEY}"
  endpoint: "${AWS_ENDPOINT}"
  image_cache_ttl: "30m"

pipeline:
  clarification_limit: 2
  confirmation_timeout: "45s"
  max_attempts: 5
  max_instance_count: 20

storage:
  driver: sqlite
  data_dir: /var/lib/cloudwright

redis:
  addr: "localhost:6379"
  token_ttl: "12h"

rulepacks:
  dir: ./rulepacks
  packs:
    - ec2-baseline
    - name: org-policy
      github: example/cloudwright-rules
      ref: v2

notify:
  webhooks:
    - name: ops-room
      url: "${OPS_WEBHOOK_URL}"
      events: [succeeded, failed]
      headers:
        Authorization: "Bearer ${OPS_WEBHOOK_TOKEN}"

sweeper:
  schedule: "@every 30s"
  retain_terminal: "72h"

ops:
  enabled: true
  addr: ":9090"

logging:
  level: debug
  format: json
`

func TestParseConfig(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Models.Primary != "anthropic/claude-sonnet-4-20250514" {
		t.Errorf("primary = %q", cfg.Models.Primary)
	}
	if len(cfg.Models.Fallbacks) != 1 || cfg.Models.Fallbacks[0] != "openai/gpt-4o" {
		t.Errorf("fallbacks = %v", cfg.Models.Fallbacks)
	}
	if cfg.Models.Temperature == nil || *cfg.Models.Temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", cfg.Models.Temperature)
	}
	if len(cfg.Models.Providers) != 3 {
		t.Errorf("expected 3 providers, got %d", len(cfg.Models.Providers))
	}

	anth := cfg.Models.Providers["anthropic"]
	if anth.API != "anthropic-messages" {
		t.Errorf("anthropic api = %q", anth.API)
	}
	if anth.Timeout != "30s" {
		t.Errorf("anthropic timeout = %q", anth.Timeout)
	}
	if len(anth.Models) != 1 || anth.Models[0].ID != "claude-sonnet-4-20250514" {
		t.Fatalf("anthropic models = %+v", anth.Models)
	}
	if anth.Models[0].ContextWindow != 200000 {
		t.Errorf("context_window = %d", anth.Models[0].ContextWindow)
	}
}

func TestParseAWS(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Errorf("region = %q, want eu-west-1", cfg.AWS.Region)
	}
	if cfg.AWS.ImageCacheTTL != "30m" {
		t.Errorf("image_cache_ttl = %q", cfg.AWS.ImageCacheTTL)
	}
}

func TestParsePipeline(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.ClarificationLimit != 2 {
		t.Errorf("clarification_limit = %d", cfg.Pipeline.ClarificationLimit)
	}
	if cfg.Pipeline.ConfirmationTimeout != "45s" {
		t.Errorf("confirmation_timeout = %q", cfg.Pipeline.ConfirmationTimeout)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Errorf("max_attempts = %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.MaxInstanceCount != 20 {
		t.Errorf("max_instance_count = %d", cfg.Pipeline.MaxInstanceCount)
	}
}

func TestParseRulepacks(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rulepacks.Dir != "./rulepacks" {
		t.Errorf("dir = %q", cfg.Rulepacks.Dir)
	}
	if len(cfg.Rulepacks.Packs) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(cfg.Rulepacks.Packs))
	}
	if cfg.Rulepacks.Packs[0].Name != "ec2-baseline" || cfg.Rulepacks.Packs[0].GitHub != "" {
		t.Errorf("pack[0] = %+v, want bare name", cfg.Rulepacks.Packs[0])
	}
	p := cfg.Rulepacks.Packs[1]
	if p.Name != "org-policy" || p.GitHub != "example/cloudwright-rules" || p.Ref != "v2" {
		t.Errorf("pack[1] = %+v", p)
	}
}

func TestParseNotify(t *testing.T) {
	t.Setenv("OPS_WEBHOOK_URL", "https://hooks.example.com/ops")
	t.Setenv("OPS_WEBHOOK_TOKEN", "tok-123")

	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Notify.Webhooks) != 1 {
		t.Fatalf("expected 1 webhook, got %d", len(cfg.Notify.Webhooks))
	}
	w := cfg.Notify.Webhooks[0]
	if w.Name != "ops-room" {
		t.Errorf("name = %q", w.Name)
	}
	if w.URL != "https://hooks.example.com/ops" {
		t.Errorf("url = %q, env var not expanded", w.URL)
	}
	if w.Headers["Authorization"] != "Bearer tok-123" {
		t.Errorf("authorization = %q, env var not expanded", w.Headers["Authorization"])
	}
	if len(w.Events) != 2 || w.Events[0] != "succeeded" {
		t.Errorf("events = %v", w.Events)
	}
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-123")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")

	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Models.Providers["anthropic"].APIKey != "sk-ant-test-123" {
		t.Errorf("anthropic api_key = %q", cfg.Models.Providers["anthropic"].APIKey)
	}
	if cfg.AWS.AccessKeyID != "AKIATEST" {
		t.Errorf("aws access_key_id = %q", cfg.AWS.AccessKeyID)
	}
	if cfg.AWS.Endpoint != "http://localhost:4566" {
		t.Errorf("aws endpoint = %q", cfg.AWS.Endpoint)
	}
}

func TestEnvSubstitutionPreservesUnsetVars(t *testing.T) {
	//nolint:errcheck // test cleanup of env var
	os.Unsetenv("OPENAI_API_KEY")
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Models.Providers["openai"].APIKey != "${OPENAI_API_KEY}" {
		t.Errorf("unset env var should be preserved, got %q", cfg.Models.Providers["openai"].APIKey)
	}
}

func TestEnvSubstitutionLiteralURLs(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Models.Providers["ollama"].BaseURL != "http://localhost:11434/v1" {
		t.Errorf("literal URL should not be modified, got %q", cfg.Models.Providers["ollama"].BaseURL)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("{{invalid yaml"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT}", "${NONEXISTENT}"},
		{"no vars here", "no vars here"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandEnv(tt.input)
		if got != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExpandEnvMultipleVars(t *testing.T) {
	t.Setenv("VAR_A", "aaa")
	t.Setenv("VAR_B", "bbb")
	got := expandEnv("${VAR_A}-${VAR_B}")
	if got != "aaa-bbb" {
		t.Errorf("expandEnv = %q, want aaa-bbb", got)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AWS.Region != "us-east-1" {
		t.Errorf("default region = %q, want us-east-1", cfg.AWS.Region)
	}
	if cfg.Pipeline.ClarificationLimit != 3 {
		t.Errorf("default clarification_limit = %d, want 3", cfg.Pipeline.ClarificationLimit)
	}
	if cfg.Pipeline.ConfirmationTimeout != "60s" {
		t.Errorf("default confirmation_timeout = %q, want 60s", cfg.Pipeline.ConfirmationTimeout)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("default max_attempts = %d, want 3", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Auth.Cooldowns.Initial != "1m" || cfg.Auth.Cooldowns.Multiplier != 5 {
		t.Errorf("default cooldowns = %+v", cfg.Auth.Cooldowns)
	}
	if cfg.Sweeper.Schedule != "@every 1m" {
		t.Errorf("default sweeper schedule = %q", cfg.Sweeper.Schedule)
	}
	if cfg.Ops.Addr != ":8080" {
		t.Errorf("default ops addr = %q, want :8080", cfg.Ops.Addr)
	}
}

func TestDefaultDataDir(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()
	want := home + "/.cloudwright"
	if cfg.Storage.DataDir != want {
		t.Errorf("data_dir = %q, want %q", cfg.Storage.DataDir, want)
	}
	if cfg.Storage.DSN != want+"/sessions.db" {
		t.Errorf("dsn = %q, want %q", cfg.Storage.DSN, want+"/sessions.db")
	}
	if cfg.Auth.StatePath != want+"/credentials.yaml" {
		t.Errorf("auth state_path = %q", cfg.Auth.StatePath)
	}
}

func TestExplicitDataDir(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DataDir != "/var/lib/cloudwright" {
		t.Errorf("data_dir = %q, want /var/lib/cloudwright", cfg.Storage.DataDir)
	}
	if cfg.Storage.DSN != "/var/lib/cloudwright/sessions.db" {
		t.Errorf("dsn = %q", cfg.Storage.DSN)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte(testYAML), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Models.Providers) != 3 {
		t.Errorf("expected 3 providers, got %d", len(cfg.Models.Providers))
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"full config", testYAML, false},
		{"empty config", "{}", false},
		{
			"bad primary ref",
			"models:\n  primary: no-slash\n",
			true,
		},
		{
			"bad fallback ref",
			"models:\n  primary: anthropic/claude-sonnet-4-20250514\n  fallbacks: [bare]\n",
			true,
		},
		{
			"unknown provider api",
			"models:\n  providers:\n    custom:\n      api: soap\n",
			true,
		},
		{
			"unknown storage driver",
			"storage:\n  driver: mysql\n",
			true,
		},
		{
			"postgres without dsn",
			"storage:\n  driver: postgres\n",
			true,
		},
		{
			"webhook without url",
			"notify:\n  webhooks:\n    - name: nameless\n",
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"45s", 45 * time.Second},
		{"2m", 2 * time.Minute},
		{"", time.Minute},
		{"not-a-duration", time.Minute},
	}
	for _, tt := range tests {
		if got := Duration(tt.input, time.Minute); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCooldownOverride(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.Cooldowns.Initial != "1m" {
		t.Errorf("cooldown initial = %q, want 1m", cfg.Auth.Cooldowns.Initial)
	}
	if cfg.Auth.Cooldowns.Max != "1h" {
		t.Errorf("cooldown max = %q, want 1h", cfg.Auth.Cooldowns.Max)
	}
	if cfg.Auth.Cooldowns.Multiplier != 5 {
		t.Errorf("cooldown multiplier = %d, want 5", cfg.Auth.Cooldowns.Multiplier)
	}
}

func TestParseLogging(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q, want json", cfg.Logging.Format)
	}
}
