// Package detect provides the public SDK types for the Hound detection
// engine: analyzer findings, anomaly claims, and the synthesized verdict.
// This package is Apache 2.0 licensed, part of the public SDK.
package detect

import (
	"errors"
	"time"
)

// Anomaly classifications.
const (
	ClassSpike          = "spike"
	ClassBurstCluster   = "burst_cluster"
	ClassDrift          = "drift"
	ClassSustainedShift = "sustained_shift"
)

// Agent failure reasons recorded by the orchestrator.
const (
	FailTimeout        = "timeout"
	FailCancelled      = "cancelled"
	FailError          = "error"
	FailMalformedInput = "malformed_input"
)

// ErrNoAnalyzers is returned when every analyzer failed and no finding is
// available to synthesize a verdict from.
var ErrNoAnalyzers = errors.New("no analyzers available: all analyzers failed")

// Anomaly is a claim that a contiguous index range of the series deviates
// from baseline. Start and End are inclusive; a single-point anomaly has
// Start == End. Corroborators is populated on verdict anomalies only and
// lists the distinct analyzers whose ranges overlapped.
type Anomaly struct {
	Start          int      `json:"start"`
	End            int      `json:"end"`
	Deviation      float64  `json:"deviation"` // Standard-deviation multiple (or analyzer statistic)
	Classification string   `json:"classification"`
	Corroborators  []string `json:"corroborators,omitempty"`
}

// Width returns the number of points the anomaly spans.
func (a Anomaly) Width() int {
	return a.End - a.Start + 1
}

// Overlaps reports whether the two ranges overlap or sit within gap indices
// of each other.
func (a Anomaly) Overlaps(b Anomaly, gap int) bool {
	return a.Start <= b.End+gap && b.Start <= a.End+gap
}

// Evidence carries structured analyzer output beyond the anomaly list.
// Zero values mean "not reported by this analyzer".
type Evidence struct {
	ChangePoints []int    `json:"change_points,omitempty"`
	DriftSlope   float64  `json:"drift_slope,omitempty"`
	DriftPercent float64  `json:"drift_percent,omitempty"`
	Correlation  float64  `json:"correlation,omitempty"`
	TopDeviation float64  `json:"top_deviation,omitempty"`
	Hypotheses   []string `json:"hypotheses,omitempty"`
}

// Finding is one analyzer's complete output for one series. Findings are
// immutable after creation; the synthesizer owns them once returned.
// Severity and Confidence are always set together.
type Finding struct {
	Agent       string    `json:"agent"`
	Summary     string    `json:"summary"`
	Anomalies   []Anomaly `json:"anomalies"`
	Confidence  float64   `json:"confidence"` // 0.0-1.0
	Severity    int       `json:"severity"`   // 0-10
	Inferential bool      `json:"inferential,omitempty"`
	Evidence    Evidence  `json:"evidence"`
}

// AgentFailure records one analyzer that produced no finding.
type AgentFailure struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason"` // "timeout", "error", "malformed_input"
	Detail string `json:"detail,omitempty"`
}

// Verdict is the synthesized output of one detection. Created once,
// immutable, and the sole unit persisted to history and published to
// external consumers.
type Verdict struct {
	ID             string         `json:"id"`
	Severity       int            `json:"severity"`   // 0-10
	Confidence     float64        `json:"confidence"` // 0.0-1.0
	Anomalies      []Anomaly      `json:"anomalies"`
	Agreement      float64        `json:"agreement"` // Fraction of analyzers within one band of consensus
	Recommendation string         `json:"recommendation"`
	Summary        string         `json:"summary"`
	Findings       []Finding      `json:"findings"`
	Failures       []AgentFailure `json:"failures,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
