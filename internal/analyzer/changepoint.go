package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/pkg/detect"
)

// driftBuckets is the number of window means the drift correlation is
// computed over. Bucketing suppresses point noise so the rank correlation
// reflects the trend, not individual outliers.
const driftBuckets = 20

// statCap bounds the break statistic when the baseline window has near-zero
// variance (a shift out of a perfectly flat baseline).
const statCap = 100.0

// ChangePoint detects structural breaks and overall drift. Breaks come from
// a sliding local window compared against a trailing baseline window; drift
// comes from a least-squares slope over the index plus a rank correlation
// over bucket means.
type ChangePoint struct {
	baselineWindow int
	localWindow    int
	breakThreshold float64
	minSeparation  int
	driftPercent   float64
	driftCorr      float64
}

// NewChangePoint creates the change-point analyzer from detection config.
func NewChangePoint(cfg config.Detection) *ChangePoint {
	return &ChangePoint{
		baselineWindow: cfg.BaselineWindow,
		localWindow:    cfg.LocalWindow,
		breakThreshold: cfg.BreakThreshold,
		minSeparation:  cfg.MinSeparation,
		driftPercent:   cfg.DriftPercent,
		driftCorr:      cfg.DriftCorrelation,
	}
}

func (c *ChangePoint) Name() string { return NameChangePoint }

type breakCandidate struct {
	index int
	stat  float64
}

// Analyze implements Analyzer. All computation is index-based, so shifting
// every timestamp by a constant cannot change the result.
func (c *ChangePoint) Analyze(_ context.Context, in Input) (*detect.Finding, error) {
	if err := in.Series.Validate(); err != nil {
		return nil, err
	}

	values := in.Series.Values()
	breaks := c.detectBreaks(values)

	slope := regressionSlope(values)
	qFirst, qLast := in.Series.QuartileMeans()
	pct := 0.0
	if qFirst != 0 {
		pct = (qLast - qFirst) / math.Abs(qFirst) * 100
	}
	corr := bucketRankCorrelation(values, driftBuckets)

	isDrift := math.Abs(pct) > c.driftPercent && math.Abs(corr) > c.driftCorr &&
		!c.transient(values)

	var anomalies []detect.Anomaly
	var maxStat float64
	changePoints := make([]int, 0, len(breaks))
	for _, b := range breaks {
		changePoints = append(changePoints, b.index)
		if b.stat > maxStat {
			maxStat = b.stat
		}
	}

	if isDrift {
		anomalies = append(anomalies, detect.Anomaly{
			Start:          0,
			End:            len(values) - 1,
			Deviation:      math.Abs(pct) / c.driftPercent,
			Classification: detect.ClassDrift,
		})
	} else {
		for _, b := range breaks {
			end := b.index + c.localWindow - 1
			if end >= len(values) {
				end = len(values) - 1
			}
			anomalies = append(anomalies, detect.Anomaly{
				Start:          b.index,
				End:            end,
				Deviation:      b.stat,
				Classification: detect.ClassSustainedShift,
			})
		}
	}

	severity := c.severity(isDrift, pct, maxStat)
	confidence := c.confidence(isDrift, pct, corr, maxStat, len(breaks))

	return &detect.Finding{
		Agent:      c.Name(),
		Summary:    c.summary(len(breaks), isDrift, pct),
		Anomalies:  anomalies,
		Confidence: confidence,
		Severity:   severity,
		Evidence: detect.Evidence{
			ChangePoints: changePoints,
			DriftSlope:   slope,
			DriftPercent: pct,
			Correlation:  corr,
		},
	}, nil
}

// detectBreaks slides a local window over the series and compares its mean
// against a trailing baseline window. Candidates within minSeparation of a
// stronger candidate are dropped.
func (c *ChangePoint) detectBreaks(values []float64) []breakCandidate {
	n := len(values)
	if n < c.baselineWindow+c.localWindow {
		return nil
	}

	var candidates []breakCandidate
	for i := c.baselineWindow + c.localWindow; i <= n; i++ {
		local := values[i-c.localWindow : i]
		base := values[i-c.localWindow-c.baselineWindow : i-c.localWindow]

		baseMean, baseStd := meanStd(base)
		localMean, _ := meanStd(local)

		diff := math.Abs(localMean - baseMean)
		// Floor the baseline spread so a flat baseline still yields a
		// finite statistic instead of dividing by zero.
		if floor := 1e-6 * (1 + math.Abs(baseMean)); baseStd < floor {
			baseStd = floor
		}
		stat := diff / baseStd
		if stat > statCap {
			stat = statCap
		}
		if stat > c.breakThreshold {
			candidates = append(candidates, breakCandidate{index: i - c.localWindow, stat: stat})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Keep the strongest candidate per minSeparation neighborhood.
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].stat > candidates[b].stat })
	var kept []breakCandidate
	for _, cand := range candidates {
		tooClose := false
		for _, k := range kept {
			if abs(cand.index-k.index) < c.minSeparation {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, cand)
		}
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].index < kept[b].index })
	return kept
}

// transient reports whether the series' deviation was a temporary
// excursion: the tail has returned to the head baseline and most of the
// series never left it. A sustained ramp keeps the bulk of its points
// elevated, so a recovery in the last few samples does not suppress it.
func (c *ChangePoint) transient(values []float64) bool {
	n := len(values)
	if n < c.baselineWindow+c.localWindow {
		return false
	}

	headMean, headStd := meanStd(values[:c.baselineWindow])
	if floor := 1e-6 * (1 + math.Abs(headMean)); headStd < floor {
		headStd = floor
	}
	band := c.breakThreshold * headStd

	tailMean, _ := meanStd(values[n-c.localWindow:])
	if math.Abs(tailMean-headMean) > band {
		return false
	}

	elevated := 0
	for _, v := range values {
		if math.Abs(v-headMean) > band {
			elevated++
		}
	}
	return float64(elevated) < 0.5*float64(n)
}

// severity maps drift percentage (when drifting) or break strength into the
// 0-10 band using fixed cutoffs.
func (c *ChangePoint) severity(isDrift bool, pct, maxStat float64) int {
	if isDrift {
		switch p := math.Abs(pct); {
		case p >= 150:
			return 9
		case p >= 100:
			return 8
		case p >= 60:
			return 7
		default:
			return 6
		}
	}
	switch {
	case maxStat >= 10:
		return 8
	case maxStat >= 8:
		return 7
	case maxStat >= 6:
		return 6
	case maxStat >= c.breakThreshold:
		return 5
	default:
		return 0
	}
}

func (c *ChangePoint) confidence(isDrift bool, pct, corr, maxStat float64, breakCount int) float64 {
	confidence := 0.5
	if isDrift {
		confidence += 0.2
	} else if maxStat >= 10 {
		confidence += 0.1
	}
	switch {
	case breakCount > 5:
		confidence += 0.2
	case breakCount > 2:
		confidence += 0.1
	}
	switch p := math.Abs(pct); {
	case p > 50:
		confidence += 0.2
	case p > c.driftPercent:
		confidence += 0.1
	}
	if isDrift {
		// Weak correlation tempers drift confidence.
		confidence *= 0.5 + 0.5*math.Abs(corr)
	}
	return clamp01(confidence)
}

func (c *ChangePoint) summary(breakCount int, isDrift bool, pct float64) string {
	if isDrift {
		return fmt.Sprintf("drift detected: %.1f%% change from first to last quartile (%d change points)", pct, breakCount)
	}
	if breakCount == 0 {
		return "no structural breaks detected, stable baseline"
	}
	return fmt.Sprintf("%d structural breaks detected, no sustained drift", breakCount)
}

// regressionSlope returns the least-squares slope of the series against its
// index.
func regressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	meanX := float64(n-1) / 2
	var sumY float64
	for _, v := range values {
		sumY += v
	}
	meanY := sumY / float64(n)

	var ssXY, ssXX float64
	for i, v := range values {
		dx := float64(i) - meanX
		ssXY += dx * (v - meanY)
		ssXX += dx * dx
	}
	if ssXX == 0 {
		return 0
	}
	return ssXY / ssXX
}

// bucketRankCorrelation splits the series into up to `buckets` windows and
// returns the Spearman rank correlation of the window means against window
// order. Ties receive mid-ranks.
func bucketRankCorrelation(values []float64, buckets int) float64 {
	n := len(values)
	if n < 4 {
		return 0
	}
	if buckets > n {
		buckets = n
	}

	means := make([]float64, buckets)
	for b := 0; b < buckets; b++ {
		lo := b * n / buckets
		hi := (b + 1) * n / buckets
		m, _ := meanStd(values[lo:hi])
		means[b] = m
	}

	ranks := midRanks(means)

	// Pearson over (bucket order, rank).
	meanX := float64(buckets-1) / 2
	var meanR float64
	for _, r := range ranks {
		meanR += r
	}
	meanR /= float64(buckets)

	var ssXY, ssXX, ssRR float64
	for i, r := range ranks {
		dx := float64(i) - meanX
		dr := r - meanR
		ssXY += dx * dr
		ssXX += dx * dx
		ssRR += dr * dr
	}
	if ssXX == 0 || ssRR == 0 {
		return 0
	}
	return ssXY / math.Sqrt(ssXX*ssRR)
}

// midRanks assigns 1-based ranks to values, averaging ranks across ties.
func midRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank for the tie group [i, j].
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
