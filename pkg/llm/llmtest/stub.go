// Package llmtest provides a deterministic llm.Provider stub so the
// detection core can be tested without a live narrative backend.
package llmtest

import (
	"context"

	"github.com/triageworks/hound/pkg/llm"
)

// Compile-time interface guard.
var _ llm.Provider = (*Stub)(nil)

// Stub is a canned llm.Provider. It records the prompts it receives and
// returns Content (or Err) on every call.
type Stub struct {
	Content string
	Err     error
	Prompts []string
}

// Generate implements llm.Provider.
func (s *Stub) Generate(_ context.Context, prompt string, _ ...llm.CallOption) (*llm.Response, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return nil, s.Err
	}
	return &llm.Response{Content: s.Content, Model: "stub"}, nil
}
