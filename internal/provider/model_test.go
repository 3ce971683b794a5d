package provider

import "testing"

func TestModelRefParsing(t *testing.T) {
	tests := []struct {
		input    string
		provider string
		model    string
		valid    bool
	}{
		{"anthropic/claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514", true},
		{"openai/gpt-4o", "openai", "gpt-4o", true},
		{"ollama/llama3", "ollama", "llama3", true},
		{"invalid", "", "invalid", false},
		{"", "", "", false},
		{"a/b/c", "a", "b/c", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref := ModelRef(tt.input)
			if got := ref.Provider(); got != tt.provider {
				t.Errorf("Provider() = %q, want %q", got, tt.provider)
			}
			if got := ref.Model(); got != tt.model {
				t.Errorf("Model() = %q, want %q", got, tt.model)
			}
			if got := ref.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestNewModelRef(t *testing.T) {
	ref := NewModelRef("openai", "gpt-4o")
	if ref.String() != "openai/gpt-4o" {
		t.Errorf("got %q, want %q", ref.String(), "openai/gpt-4o")
	}
}

func TestParseModelRef(t *testing.T) {
	ref, err := ParseModelRef("openai/gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Provider() != "openai" || ref.Model() != "gpt-4o" {
		t.Errorf("unexpected ref: %s", ref)
	}

	_, err = ParseModelRef("invalid")
	if err == nil {
		t.Error("expected error for invalid ref")
	}
}

func TestModelInfoRef(t *testing.T) {
	info := ModelInfo{ID: "gpt-4o", ProviderID: "openai"}
	if got := info.Ref().String(); got != "openai/gpt-4o" {
		t.Errorf("Ref() = %q, want %q", got, "openai/gpt-4o")
	}
}
