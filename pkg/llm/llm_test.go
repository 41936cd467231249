package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestApplyOptions_Defaults(t *testing.T) {
	cfg := ApplyOptions()
	if cfg.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", cfg.Temperature)
	}
	if cfg.MaxTokens != 600 {
		t.Errorf("MaxTokens = %d, want 600", cfg.MaxTokens)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty (provider default)", cfg.Model)
	}
}

func TestApplyOptions_Overrides(t *testing.T) {
	cfg := ApplyOptions(WithModel("m"), WithTemperature(0.9), WithMaxTokens(42))
	if cfg.Model != "m" || cfg.Temperature != 0.9 || cfg.MaxTokens != 42 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestProviderError_Matching(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("calling backend: %w", NewProviderError(ErrCodeTimeout, "deadline", inner))

	if !IsTimeoutError(err) {
		t.Error("IsTimeoutError = false through wrapping")
	}
	if IsServerError(err) {
		t.Error("IsServerError = true for a timeout")
	}
	if !errors.Is(err, inner) {
		t.Error("inner error lost through ProviderError")
	}
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) Generate(_ context.Context, _ string, _ ...CallOption) (*Response, error) {
	c.calls++
	return &Response{Content: "ok"}, nil
}

func TestRateLimited_PassesThrough(t *testing.T) {
	inner := &countingProvider{}
	p := RateLimited(inner, 1000)

	resp, err := p.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" || inner.calls != 1 {
		t.Errorf("resp = %+v, calls = %d", resp, inner.calls)
	}
}

func TestRateLimited_CancelledWait(t *testing.T) {
	inner := &countingProvider{}
	p := RateLimited(inner, 0.001) // one token per ~17 minutes

	// Burn the initial token.
	if _, err := p.Generate(context.Background(), "x"); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Generate(ctx, "y")
	if !IsRateLimitError(err) {
		t.Errorf("error = %v, want rate limit", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestRateLimited_DisabledReturnsSame(t *testing.T) {
	inner := &countingProvider{}
	if got := RateLimited(inner, 0); got != Provider(inner) {
		t.Error("RateLimited(p, 0) should return p unchanged")
	}
}
