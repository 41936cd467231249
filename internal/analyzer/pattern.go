package analyzer

import (
	"context"
	"fmt"
	"math"

	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/pkg/detect"
)

// madScale converts a median absolute deviation into a consistent estimate
// of the standard deviation for normally distributed data.
const madScale = 1.4826

// Pattern is the statistical outlier analyzer. It standardizes every point
// against a baseline (robust median/MAD by default, mean/stddev otherwise),
// flags points beyond the z-score threshold, and merges adjacent flagged
// points into spike or burst anomalies.
type Pattern struct {
	threshold float64
	robust    bool
	mergeGap  int
}

// NewPattern creates the pattern analyzer from detection config.
func NewPattern(cfg config.Detection) *Pattern {
	return &Pattern{
		threshold: cfg.ZScoreThreshold,
		robust:    cfg.Robust,
		mergeGap:  cfg.MergeGap,
	}
}

func (p *Pattern) Name() string { return NamePattern }

// Analyze implements Analyzer.
func (p *Pattern) Analyze(_ context.Context, in Input) (*detect.Finding, error) {
	if err := in.Series.Validate(); err != nil {
		return nil, err
	}

	stats := in.Series.Describe()
	center, scale := stats.Mean, stats.StdDev
	if p.robust && stats.MAD > 0 {
		center, scale = stats.Median, stats.MAD*madScale
	}

	values := in.Series.Values()
	zscores := make([]float64, len(values))
	var flagged []int
	var maxZ float64
	if scale > 0 {
		for i, v := range values {
			z := math.Abs(v-center) / scale
			zscores[i] = z
			if z > maxZ {
				maxZ = z
			}
			if z > p.threshold {
				flagged = append(flagged, i)
			}
		}
	}

	anomalies := p.mergeFlagged(flagged, zscores)

	severity := severityFromZ(maxZ, p.threshold)
	if len(anomalies) == 0 {
		severity = 0
	}

	confidence := 0.5
	switch {
	case maxZ > 5:
		confidence += 0.3
	case maxZ > p.threshold:
		confidence += 0.2
	}
	if len(flagged) > 3 {
		confidence += 0.1
	}
	if tieFraction(values) > 0.5 && !allEqual(values) {
		// Heavy ties degrade the deviation estimate.
		confidence -= 0.1
	}
	confidence = clamp01(confidence)

	return &detect.Finding{
		Agent:      p.Name(),
		Summary:    p.summary(len(flagged), maxZ),
		Anomalies:  anomalies,
		Confidence: confidence,
		Severity:   severity,
		Evidence: detect.Evidence{
			TopDeviation: maxZ,
		},
	}, nil
}

// mergeFlagged collapses flagged indices into contiguous ranges, bridging
// gaps up to mergeGap. Width 1-2 classifies as spike, wider as burst.
func (p *Pattern) mergeFlagged(flagged []int, zscores []float64) []detect.Anomaly {
	if len(flagged) == 0 {
		return nil
	}

	var out []detect.Anomaly
	start := flagged[0]
	prev := flagged[0]
	peak := zscores[flagged[0]]

	flush := func(end int) {
		class := detect.ClassSpike
		if end-start+1 > 2 {
			class = detect.ClassBurstCluster
		}
		out = append(out, detect.Anomaly{
			Start:          start,
			End:            end,
			Deviation:      peak,
			Classification: class,
		})
	}

	for _, idx := range flagged[1:] {
		if idx-prev > p.mergeGap+1 {
			flush(prev)
			start = idx
			peak = 0
		}
		if zscores[idx] > peak {
			peak = zscores[idx]
		}
		prev = idx
	}
	flush(prev)
	return out
}

func (p *Pattern) summary(flagged int, maxZ float64) string {
	if flagged == 0 {
		return "no statistical outliers detected"
	}
	return fmt.Sprintf("%d outlier points detected, top deviation %.1f sigma from baseline", flagged, maxZ)
}

// severityFromZ maps the strongest standardized deviation into the 0-10
// band using fixed cutoffs.
func severityFromZ(z, threshold float64) int {
	switch {
	case z >= 10:
		return 10
	case z >= 8:
		return 9
	case z >= 6:
		return 8
	case z >= 5:
		return 7
	case z >= 4:
		return 6
	case z >= 3.5:
		return 5
	case z >= threshold:
		return 4
	default:
		return 0
	}
}

// tieFraction returns the fraction of values equal to the most common value.
func tieFraction(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	max := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > max {
			max = counts[v]
		}
	}
	return float64(max) / float64(len(values))
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
