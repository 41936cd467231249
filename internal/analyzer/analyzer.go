// Package analyzer implements the detection agents: a pattern/outlier
// analyzer, a change-point/drift analyzer, and a root-cause analyzer. Each
// is a pure function from a series (plus optional historical context) to a
// finding; no state is shared between invocations.
package analyzer

import (
	"context"

	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/pkg/detect"
	"github.com/triageworks/hound/pkg/llm"
	"github.com/triageworks/hound/pkg/series"
	"go.uber.org/zap"
)

// Analyzer identities.
const (
	NamePattern     = "pattern_analyst"
	NameChangePoint = "change_detective"
	NameRootCause   = "root_cause"
)

// Input is the immutable view of a detection handed to each analyzer.
// Context is historical-context text from a knowledge store; empty means
// none supplied, which every analyzer must tolerate.
type Input struct {
	Series  series.Series
	Context string
}

// Analyzer turns a series into a structured finding. Implementations must
// be safe to run concurrently with each other and must not observe other
// analyzers' output.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (*detect.Finding, error)
}

// DefaultSet returns the standard three analyzers configured from cfg.
// narrative may be nil; the root-cause analyzer then uses its deterministic
// summary.
func DefaultSet(cfg config.Detection, narrative llm.Provider, logger *zap.Logger) []Analyzer {
	return []Analyzer{
		NewPattern(cfg),
		NewChangePoint(cfg),
		NewRootCause(cfg, narrative, logger.Named(NameRootCause)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
