// Package llm provides the public SDK types for narrative reasoning
// backends. The root-cause analyzer may delegate its causal narrative to a
// Provider; the statistical core never depends on one being present.
// Implementations live in internal/llm/{provider}/ adapters.
//
// This package is Apache 2.0 licensed, part of the public SDK.
package llm

import "context"

// Provider is the interface implemented by narrative backends. It exposes
// single-prompt generation; the detection core only ever needs one call per
// verdict, so there is no chat surface here.
type Provider interface {
	// Generate creates a completion from a single prompt.
	// Use CallOption values to override model, temperature, or token limit.
	Generate(ctx context.Context, prompt string, opts ...CallOption) (*Response, error)
}

// HealthReporter is optionally implemented by providers that can report
// connection health. Detected via type assertion.
type HealthReporter interface {
	// Heartbeat checks whether the backend is reachable.
	Heartbeat(ctx context.Context) error
}

// Response is the result of a Generate call.
type Response struct {
	Content string // Generated text
	Model   string // Model that produced it
}

// CallOption configures a single Generate call.
type CallOption func(*CallConfig)

// CallConfig holds the resolved configuration for a single call.
// Callers interact through CallOption functions, not this struct directly.
type CallConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// WithModel sets the model to use for this call, overriding the provider default.
func WithModel(model string) CallOption {
	return func(c *CallConfig) { c.Model = model }
}

// WithTemperature sets the sampling temperature.
// 0.0 = deterministic, 1.0+ = creative. Provider default if unset.
func WithTemperature(temp float64) CallOption {
	return func(c *CallConfig) { c.Temperature = temp }
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(max int) CallOption {
	return func(c *CallConfig) { c.MaxTokens = max }
}

// ApplyOptions creates a CallConfig from a list of options, starting from defaults.
// Narration defaults to low temperature: the verdict prose should be stable.
func ApplyOptions(opts ...CallOption) CallConfig {
	cfg := CallConfig{
		Temperature: 0.3,
		MaxTokens:   600,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
