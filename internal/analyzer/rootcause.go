package analyzer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/pkg/detect"
	"github.com/triageworks/hound/pkg/llm"
	"go.uber.org/zap"
)

// Hypothesis labels emitted in Evidence.Hypotheses. The first entry is the
// primary hypothesis.
const (
	HypDeployment  = "deployment or configuration change"
	HypScheduled   = "scheduled job or periodic task"
	HypResource    = "resource exhaustion"
	HypExternalDep = "external dependency failure"
	HypUnknown     = "unknown cause"
)

// clusterGap is the maximum index gap between IQR outliers grouped into one
// cluster.
const clusterGap = 5

// RootCause infers a likely cause for the anomalies in a series. It finds
// IQR outliers, groups them into clusters, and matches the cluster shape
// plus the series' temporal structure against a small hypothesis taxonomy.
// Its findings are inferential: the synthesizer discounts them when no
// independent evidence backs them up.
type RootCause struct {
	narrative llm.Provider
	logger    *zap.Logger
}

// NewRootCause creates the root-cause analyzer. narrative may be nil, in
// which case the deterministic summary is always used.
func NewRootCause(_ config.Detection, narrative llm.Provider, logger *zap.Logger) *RootCause {
	return &RootCause{narrative: narrative, logger: logger}
}

func (r *RootCause) Name() string { return NameRootCause }

type cluster struct {
	start, end int
	maxDev     float64 // sd multiple of the farthest member
}

// Analyze implements Analyzer.
func (r *RootCause) Analyze(ctx context.Context, in Input) (*detect.Finding, error) {
	if err := in.Series.Validate(); err != nil {
		return nil, err
	}

	values := in.Series.Values()
	stats := in.Series.Describe()

	q1 := in.Series.Percentile(25)
	q3 := in.Series.Percentile(75)
	iqr := q3 - q1
	loFence := q1 - 1.5*iqr
	hiFence := q3 + 1.5*iqr

	var outliers []int
	for i, v := range values {
		if v < loFence || v > hiFence {
			outliers = append(outliers, i)
		}
	}

	clusters := buildClusters(outliers, values, stats.Mean, stats.StdDev)
	autocorr := lagOneAutocorrelation(values)
	firstMean, secondMean := halfMeans(values)
	rising := secondMean > firstMean && (firstMean == 0 || (secondMean-firstMean)/math.Abs(firstMean) > 0.1)

	hypotheses := r.classify(clusters, len(values), autocorr, rising)

	var anomalies []detect.Anomaly
	var maxDev float64
	for _, c := range clusters {
		class := detect.ClassSpike
		if c.end-c.start+1 > 2 {
			class = detect.ClassBurstCluster
		}
		anomalies = append(anomalies, detect.Anomaly{
			Start:          c.start,
			End:            c.end,
			Deviation:      c.maxDev,
			Classification: class,
		})
		if c.maxDev > maxDev {
			maxDev = c.maxDev
		}
	}

	severity := 0
	if len(anomalies) > 0 {
		severity = severityFromZ(maxDev, 3)
		// Inferred causes never claim the top band on their own.
		if severity > 8 {
			severity = 8
		}
	}

	confidence := 0.4
	if len(hypotheses) > 0 && hypotheses[0] != HypUnknown {
		confidence += 0.2
	}
	if autocorr >= 0.7 {
		confidence += 0.1
	}
	if len(clusters) >= 3 {
		confidence += 0.1
	}
	if in.Context != "" {
		confidence += 0.1
	}
	confidence = clamp01(confidence)

	summary := r.deterministicSummary(hypotheses, len(outliers), len(clusters))
	if r.narrative != nil && len(outliers) > 0 {
		if narrated, ok := r.narrate(ctx, in, stats.Mean, stats.StdDev, hypotheses, clusters); ok {
			summary = narrated
		}
	}

	return &detect.Finding{
		Agent:       r.Name(),
		Summary:     summary,
		Anomalies:   anomalies,
		Confidence:  confidence,
		Severity:    severity,
		Inferential: true,
		Evidence: detect.Evidence{
			TopDeviation: maxDev,
			Correlation:  autocorr,
			Hypotheses:   hypotheses,
		},
	}, nil
}

// classify matches cluster shape and temporal structure against the
// hypothesis taxonomy. Every matching hypothesis is returned, strongest
// first.
func (r *RootCause) classify(clusters []cluster, n int, autocorr float64, rising bool) []string {
	if len(clusters) == 0 {
		return nil
	}

	var out []string
	if autocorr >= 0.7 && rising {
		out = append(out, HypResource)
	}
	if len(clusters) >= 3 && gapCV(clusters) < 0.2 {
		out = append(out, HypScheduled)
	}
	if len(clusters) == 1 {
		finalQuartile := 3 * n / 4
		if clusters[0].end >= finalQuartile {
			out = append(out, HypDeployment)
		} else {
			out = append(out, HypExternalDep)
		}
	}
	if len(out) == 0 {
		out = append(out, HypUnknown)
	}
	return out
}

func (r *RootCause) deterministicSummary(hypotheses []string, outliers, clusters int) string {
	if outliers == 0 {
		return "no outliers found, nothing to attribute"
	}
	return fmt.Sprintf("%d outliers in %d clusters, most likely cause: %s",
		outliers, clusters, hypotheses[0])
}

// narrate asks the narrative backend to phrase the causal explanation.
// Failures degrade to the deterministic summary.
func (r *RootCause) narrate(ctx context.Context, in Input, mean, std float64, hypotheses []string, clusters []cluster) (string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A metric series of %d points (mean %.2f, stddev %.2f) shows outlier clusters at index ranges:",
		len(in.Series), mean, std)
	for _, c := range clusters {
		fmt.Fprintf(&sb, " [%d-%d]", c.start, c.end)
	}
	fmt.Fprintf(&sb, ". Statistical evidence points to: %s.", strings.Join(hypotheses, "; "))
	if in.Context != "" {
		fmt.Fprintf(&sb, " Operator context: %s.", in.Context)
	}
	sb.WriteString(" In two sentences, state the most likely root cause and what to check first.")

	start := time.Now()
	resp, err := r.narrative.Generate(ctx, sb.String())
	if err != nil {
		r.logger.Warn("narrative generation failed, using deterministic summary",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return "", false
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", false
	}
	return text, true
}

// buildClusters groups outlier indices separated by at most clusterGap.
func buildClusters(outliers []int, values []float64, mean, std float64) []cluster {
	if len(outliers) == 0 {
		return nil
	}

	dev := func(i int) float64 {
		if std == 0 {
			return 0
		}
		return math.Abs(values[i]-mean) / std
	}

	var out []cluster
	cur := cluster{start: outliers[0], end: outliers[0], maxDev: dev(outliers[0])}
	for _, idx := range outliers[1:] {
		if idx-cur.end <= clusterGap {
			cur.end = idx
			if d := dev(idx); d > cur.maxDev {
				cur.maxDev = d
			}
			continue
		}
		out = append(out, cur)
		cur = cluster{start: idx, end: idx, maxDev: dev(idx)}
	}
	return append(out, cur)
}

// gapCV is the coefficient of variation of inter-cluster gaps. A low value
// means the clusters are evenly spaced.
func gapCV(clusters []cluster) float64 {
	if len(clusters) < 3 {
		return math.Inf(1)
	}
	gaps := make([]float64, 0, len(clusters)-1)
	for i := 1; i < len(clusters); i++ {
		gaps = append(gaps, float64(clusters[i].start-clusters[i-1].end))
	}
	mean, std := meanStd(gaps)
	if mean == 0 {
		return math.Inf(1)
	}
	return std / mean
}

// lagOneAutocorrelation measures how strongly each point predicts the next.
func lagOneAutocorrelation(values []float64) float64 {
	n := len(values)
	if n < 3 {
		return 0
	}
	mean, _ := meanStd(values)

	var num, den float64
	for i := 0; i < n; i++ {
		d := values[i] - mean
		den += d * d
		if i < n-1 {
			num += d * (values[i+1] - mean)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// halfMeans returns the means of the first and second halves of the series.
func halfMeans(values []float64) (first, second float64) {
	mid := len(values) / 2
	first, _ = meanStd(values[:mid])
	second, _ = meanStd(values[mid:])
	return first, second
}
