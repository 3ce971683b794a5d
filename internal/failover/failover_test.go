package failover

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwright/cloudwright/internal/auth"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/provider"
)

type mockProvider struct {
	id        string
	callCount int
	lastModel string
	err       error
}

func (m *mockProvider) ID() string { return m.id }
func (m *mockProvider) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	m.callCount++
	m.lastModel = req.Model
	if m.err != nil {
		return nil, m.err
	}
	return &provider.CompletionResponse{Content: "ok from " + m.id}, nil
}
func (m *mockProvider) Models() []provider.ModelInfo { return nil }

func testController(reg *provider.Registry, fallbacks []provider.ModelRef) (*Controller, *auth.Store) {
	store := auth.NewStore("")
	store.Add(&auth.Profile{ProviderID: "anthropic", Key: "sk-ant-test"})
	store.Add(&auth.Profile{ProviderID: "openai", Key: "sk-oai-test"})
	ctrl := NewController(reg, store, auth.DefaultBackoff(), fallbacks, logging.Discard())
	return ctrl, store
}

func TestCompleteSuccess(t *testing.T) {
	reg := provider.NewRegistry()
	p := &mockProvider{id: "anthropic"}
	_ = reg.Register(p)

	ctrl, store := testController(reg, nil)

	resp, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from anthropic" {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if p.lastModel != "claude-sonnet-4-20250514" {
		t.Errorf("provider got model %q, want bare model id", p.lastModel)
	}
	if store.Get("anthropic").Stats.LastUsed.IsZero() {
		t.Error("success should record LastUsed")
	}
}

func TestCompleteDoesNotMutateRequest(t *testing.T) {
	reg := provider.NewRegistry()
	_ = reg.Register(&mockProvider{id: "anthropic"})

	ctrl, _ := testController(reg, nil)

	req := &provider.CompletionRequest{Model: "anthropic/claude-sonnet-4-20250514"}
	if _, err := ctrl.Complete(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Model != "anthropic/claude-sonnet-4-20250514" {
		t.Errorf("caller request mutated, Model = %q", req.Model)
	}
}

func TestCompleteFallbackToNextModel(t *testing.T) {
	reg := provider.NewRegistry()
	_ = reg.Register(&mockProvider{id: "anthropic", err: &provider.APIError{Provider: "anthropic", Status: 429}})
	fallback := &mockProvider{id: "openai"}
	_ = reg.Register(fallback)

	ctrl, store := testController(reg, []provider.ModelRef{"openai/gpt-4o"})

	resp, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from openai" {
		t.Errorf("expected fallback to openai, got %s", resp.Content)
	}
	if fallback.lastModel != "gpt-4o" {
		t.Errorf("fallback got model %q, want gpt-4o", fallback.lastModel)
	}
	if !store.Get("anthropic").InCooldown(time.Now()) {
		t.Error("rate-limited credential should be in cooldown")
	}
}

func TestCompleteAuthErrorDisablesCredential(t *testing.T) {
	reg := provider.NewRegistry()
	_ = reg.Register(&mockProvider{id: "anthropic", err: &provider.APIError{Provider: "anthropic", Status: 401}})
	_ = reg.Register(&mockProvider{id: "openai"})

	ctrl, store := testController(reg, []provider.ModelRef{"openai/gpt-4o"})

	resp, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from openai" {
		t.Errorf("expected fallback to openai, got %s", resp.Content)
	}
	if !store.Get("anthropic").IsDisabled(time.Now()) {
		t.Error("rejected credential should be disabled")
	}
}

func TestCompleteSkipsCoolingCredential(t *testing.T) {
	reg := provider.NewRegistry()
	primary := &mockProvider{id: "anthropic"}
	_ = reg.Register(primary)
	_ = reg.Register(&mockProvider{id: "openai"})

	ctrl, store := testController(reg, []provider.ModelRef{"openai/gpt-4o"})
	store.Get("anthropic").MarkFailed(auth.DefaultBackoff(), time.Now())

	resp, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from openai" {
		t.Errorf("expected fallback to openai, got %s", resp.Content)
	}
	if primary.callCount != 0 {
		t.Errorf("cooling provider called %d times, want 0", primary.callCount)
	}
}

func TestCompleteNonRetryableAborts(t *testing.T) {
	reg := provider.NewRegistry()
	badReq := &provider.APIError{Provider: "anthropic", Status: 400, Body: "context too long"}
	_ = reg.Register(&mockProvider{id: "anthropic", err: badReq})
	fallback := &mockProvider{id: "openai"}
	_ = reg.Register(fallback)

	ctrl, _ := testController(reg, []provider.ModelRef{"openai/gpt-4o"})

	_, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("expected the 400 back, got %v", err)
	}
	if fallback.callCount != 0 {
		t.Errorf("fallback called %d times after non-retryable error, want 0", fallback.callCount)
	}
}

func TestCompleteAllExhausted(t *testing.T) {
	reg := provider.NewRegistry()
	rateLimited := &provider.APIError{Provider: "anthropic", Status: 429}
	_ = reg.Register(&mockProvider{id: "anthropic", err: rateLimited})
	_ = reg.Register(&mockProvider{id: "openai", err: &provider.APIError{Provider: "openai", Status: 503}})

	ctrl, _ := testController(reg, []provider.ModelRef{"openai/gpt-4o"})

	_, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	var exhausted *AllExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AllExhaustedError, got %T: %v", err, err)
	}
	if len(exhausted.Attempted) != 2 {
		t.Errorf("attempted %v, want 2 models", exhausted.Attempted)
	}
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 {
		t.Errorf("exhausted error should wrap the last failure, got %v", exhausted.Last)
	}
}

func TestCompleteSkipsDuplicateModels(t *testing.T) {
	reg := provider.NewRegistry()
	p := &mockProvider{id: "anthropic", err: &provider.APIError{Provider: "anthropic", Status: 429}}
	_ = reg.Register(p)

	ctrl, _ := testController(reg, []provider.ModelRef{"anthropic/claude-sonnet-4-20250514"})

	_, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{
		Model: "anthropic/claude-sonnet-4-20250514",
	})
	var exhausted *AllExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AllExhaustedError, got %T", err)
	}
	if p.callCount != 1 {
		t.Errorf("duplicate model called %d times, want 1", p.callCount)
	}
}

func TestCompleteInvalidModelRef(t *testing.T) {
	ctrl, _ := testController(provider.NewRegistry(), nil)

	_, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{Model: "no-slash"})
	if err == nil {
		t.Fatal("expected error for model without provider prefix")
	}
}

func TestCompleteUnregisteredProvider(t *testing.T) {
	ctrl, _ := testController(provider.NewRegistry(), nil)

	_, err := ctrl.Complete(context.Background(), &provider.CompletionRequest{Model: "unknown/model-x"})
	var exhausted *AllExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AllExhaustedError, got %T: %v", err, err)
	}
}

func TestIsRateLimitError(t *testing.T) {
	if !IsRateLimitError(&provider.APIError{Status: 429}) {
		t.Error("429 should be rate limit error")
	}
	if IsRateLimitError(&provider.APIError{Status: 500}) {
		t.Error("500 should not be rate limit error")
	}
	if IsRateLimitError(fmt.Errorf("connection refused")) {
		t.Error("plain error should not be rate limit")
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(&provider.APIError{Status: 401}) {
		t.Error("401 should be auth error")
	}
	if !IsAuthError(&provider.APIError{Status: 403}) {
		t.Error("403 should be auth error")
	}
	if IsAuthError(&provider.APIError{Status: 429}) {
		t.Error("429 should not be auth error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &provider.APIError{Status: 429}, true},
		{"auth", &provider.APIError{Status: 401}, true},
		{"timeout", &provider.APIError{Status: 408}, true},
		{"server fault", &provider.APIError{Status: 500}, true},
		{"overloaded", &provider.APIError{Status: 503}, true},
		{"bad request", &provider.APIError{Status: 400}, false},
		{"not found", &provider.APIError{Status: 404}, false},
		{"transport failure", fmt.Errorf("connection refused"), true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllExhaustedErrorString(t *testing.T) {
	err := &AllExhaustedError{
		Attempted: []string{"anthropic/claude-sonnet-4-20250514", "openai/gpt-4o"},
		Last:      &provider.APIError{Provider: "openai", Status: 503, Body: "overloaded"},
	}
	got := err.Error()
	if got == "" {
		t.Fatal("expected non-empty error string")
	}
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Error("should unwrap to the last provider error")
	}
}
