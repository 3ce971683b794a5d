package provider

import (
	"fmt"
	"net/http"
	"time"
)

const (
	APIOpenAI    = "openai-completions"
	APIAnthropic = "anthropic-messages"
)

// ProviderConfig mirrors the config file's provider block without
// importing the config package.
type ProviderConfig struct {
	ID      string
	BaseURL string
	APIKey  string
	API     string
	Timeout time.Duration
	Models  []ModelInfo
}

// FromConfig creates a Provider from a config entry. The api field
// determines which wire format to use:
//   - "openai-completions"  -> OpenAI-compatible (OpenAI, Ollama, vLLM, etc.)
//   - "anthropic-messages"  -> Anthropic Messages API
func FromConfig(cfg ProviderConfig) (Provider, error) {
	switch cfg.API {
	case APIOpenAI, "":
		var opts []OpenAIOption
		if cfg.Timeout > 0 {
			opts = append(opts, WithOpenAIHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewOpenAIProvider(cfg.ID, cfg.BaseURL, cfg.APIKey, cfg.Models, opts...), nil
	case APIAnthropic:
		var opts []AnthropicOption
		if cfg.Timeout > 0 {
			opts = append(opts, WithAnthropicHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewAnthropicProvider(cfg.ID, cfg.BaseURL, cfg.APIKey, cfg.Models, opts...), nil
	default:
		return nil, fmt.Errorf("unknown api type %q for provider %q (supported: %s, %s)",
			cfg.API, cfg.ID, APIOpenAI, APIAnthropic)
	}
}
