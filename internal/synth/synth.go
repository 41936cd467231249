// Package synth combines analyzer findings into a single verdict. It is a
// pure function of its inputs: identity fields (verdict ID, timestamp) and
// persistence belong to the orchestrator and learner.
package synth

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/triageworks/hound/pkg/detect"
)

// mergeGap is the maximum index distance between two anomaly ranges that
// still counts as the same underlying event.
const mergeGap = 2

// agreementBand is the severity distance treated as "within one band" when
// scoring cross-analyzer agreement (bands are two severity points wide).
const agreementBand = 2

// driftDominance is the width ratio at which an overlapping drift range is
// kept apart from a localized anomaly instead of being folded into it.
const driftDominance = 4

// Synthesize merges findings into one verdict using per-agent weights.
// Weights are renormalized over the agents that actually reported; an agent
// with no finding contributes nothing. hasContext reports whether the
// detection ran with historical context; without it, an inferential
// finding's confidence is capped at the mean confidence of the measured
// findings. Findings must be non-empty.
func Synthesize(findings []detect.Finding, weights map[string]float64, hasContext bool) detect.Verdict {
	verdict := detect.Verdict{}
	if len(findings) == 0 {
		return verdict
	}

	confidences, capWarnings := effectiveConfidences(findings, hasContext)
	normalized := normalizeWeights(findings, weights)

	var severity, confidence float64
	for i, f := range findings {
		w := normalized[f.Agent]
		severity += w * float64(f.Severity)
		confidence += w * confidences[i]
	}

	verdict.Severity = int(math.Round(severity))
	verdict.Confidence = confidence
	verdict.Anomalies = mergeAnomalies(findings)
	verdict.Agreement = agreement(findings, verdict.Severity)
	verdict.Recommendation = Recommendation(verdict.Severity)
	verdict.Summary = joinSummaries(findings)
	verdict.Findings = findings
	verdict.Warnings = capWarnings
	return verdict
}

// Recommendation maps a severity into the fixed action ladder.
func Recommendation(severity int) string {
	switch {
	case severity >= 9:
		return "critical: page on-call immediately"
	case severity >= 7:
		return "high: investigate within 1 hour"
	case severity >= 5:
		return "medium: review within 4 hours"
	case severity >= 3:
		return "low: note for reference"
	default:
		return "minimal: no action required"
	}
}

// effectiveConfidences returns the confidence actually used per finding.
// Inferential findings are circumstantial: without independent context
// their confidence may not exceed the mean of the measured findings.
func effectiveConfidences(findings []detect.Finding, hasContext bool) ([]float64, []string) {
	out := make([]float64, len(findings))
	for i, f := range findings {
		out[i] = f.Confidence
	}
	if hasContext {
		return out, nil
	}

	var measuredSum float64
	var measured int
	for _, f := range findings {
		if !f.Inferential {
			measuredSum += f.Confidence
			measured++
		}
	}
	if measured == 0 {
		return out, nil
	}
	ceiling := measuredSum / float64(measured)

	var warnings []string
	for i, f := range findings {
		if f.Inferential && out[i] > ceiling {
			out[i] = ceiling
			warnings = append(warnings,
				fmt.Sprintf("%s confidence capped at %.2f: inferential finding without historical context", f.Agent, ceiling))
		}
	}
	return out, warnings
}

// normalizeWeights restricts weights to the reporting agents and scales
// them to sum to 1. An all-zero (or missing) weight set falls back to an
// equal split so a cold start cannot zero out the verdict.
func normalizeWeights(findings []detect.Finding, weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(findings))
	var sum float64
	for _, f := range findings {
		w := weights[f.Agent]
		if w < 0 {
			w = 0
		}
		out[f.Agent] = w
		sum += w
	}
	if sum == 0 {
		equal := 1.0 / float64(len(findings))
		for agent := range out {
			out[agent] = equal
		}
		return out
	}
	for agent, w := range out {
		out[agent] = w / sum
	}
	return out
}

type attributed struct {
	detect.Anomaly
	agent string
}

// mergeAnomalies folds all findings' anomalies into a deduplicated list.
// Ranges that overlap or sit within mergeGap indices collapse into one
// anomaly carrying the max deviation, the classification of its strongest
// contributor, and the distinct set of corroborating agents. A drift range
// that dwarfs an overlapping localized anomaly is held apart: folding it in
// would stretch a spike or burst across the whole series, so it corroborates
// the localized ranges and stays its own entry.
func mergeAnomalies(findings []detect.Finding) []detect.Anomaly {
	var all []attributed
	for _, f := range findings {
		for _, a := range f.Anomalies {
			all = append(all, attributed{Anomaly: a, agent: f.Agent})
		}
	}
	if len(all) == 0 {
		return nil
	}

	localized, dominant := splitDominantDrift(all)
	out := mergeRanges(localized)
	for _, d := range mergeRanges(dominant) {
		for i := range out {
			if d.Overlaps(out[i], mergeGap) {
				out[i].Corroborators = mergeCorroborators(out[i].Corroborators, d.Corroborators)
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// splitDominantDrift separates drift ranges at least driftDominance times
// wider than some overlapping non-drift anomaly from the rest.
func splitDominantDrift(all []attributed) (localized, dominant []attributed) {
	for _, a := range all {
		if a.Classification == detect.ClassDrift && dwarfsOverlapping(a, all) {
			dominant = append(dominant, a)
		} else {
			localized = append(localized, a)
		}
	}
	return localized, dominant
}

func dwarfsOverlapping(d attributed, all []attributed) bool {
	for _, a := range all {
		if a.Classification == detect.ClassDrift {
			continue
		}
		if d.Overlaps(a.Anomaly, mergeGap) && d.Width() >= driftDominance*a.Width() {
			return true
		}
	}
	return false
}

// mergeRanges collapses overlapping or near-adjacent ranges.
func mergeRanges(list []attributed) []detect.Anomaly {
	if len(list) == 0 {
		return nil
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start != list[j].Start {
			return list[i].Start < list[j].Start
		}
		return list[i].End < list[j].End
	})

	var out []detect.Anomaly
	cur := list[0].Anomaly
	agents := map[string]bool{list[0].agent: true}

	flush := func() {
		cur.Corroborators = sortedKeys(agents)
		out = append(out, cur)
	}

	for _, a := range list[1:] {
		if cur.Overlaps(a.Anomaly, mergeGap) {
			if a.End > cur.End {
				cur.End = a.End
			}
			if a.Deviation > cur.Deviation {
				cur.Deviation = a.Deviation
				cur.Classification = a.Classification
			}
			agents[a.agent] = true
			continue
		}
		flush()
		cur = a.Anomaly
		agents = map[string]bool{a.agent: true}
	}
	flush()
	return out
}

// mergeCorroborators unions two sorted agent lists.
func mergeCorroborators(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	return sortedKeys(set)
}

// agreement is the fraction of findings whose severity lies within one band
// of the consensus.
func agreement(findings []detect.Finding, consensus int) float64 {
	within := 0
	for _, f := range findings {
		if abs(f.Severity-consensus) <= agreementBand {
			within++
		}
	}
	return float64(within) / float64(len(findings))
}

func joinSummaries(findings []detect.Finding) string {
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Agent, f.Summary))
	}
	return strings.Join(parts, " | ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
