package analyzer

import (
	"math"
	"testing"

	"github.com/triageworks/hound/pkg/detect"
)

func TestChangePoint_FlatSeries(t *testing.T) {
	c := NewChangePoint(testDetection())
	values := make([]float64, 200)
	for i := range values {
		values[i] = 5.0
	}

	f := mustAnalyze(t, c, values)
	if len(f.Anomalies) != 0 {
		t.Errorf("anomalies = %d, want 0: %+v", len(f.Anomalies), f.Anomalies)
	}
	if f.Severity != 0 {
		t.Errorf("severity = %d, want 0", f.Severity)
	}
	if len(f.Evidence.ChangePoints) != 0 {
		t.Errorf("change points = %v, want none", f.Evidence.ChangePoints)
	}
}

func TestChangePoint_DriftScenario(t *testing.T) {
	// Flat start, a slow quadratic climb over most of the series, then a
	// recovery at the tail.
	c := NewChangePoint(testDetection())
	values := make([]float64, 500)
	for i := range values {
		switch {
		case i < 100:
			values[i] = 2.5
		case i < 480:
			x := float64(i-100) / 380
			values[i] = 2.5 + 5.5*x*x
		default:
			values[i] = 2.5
		}
	}

	f := mustAnalyze(t, c, values)
	if len(f.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want a single drift range: %+v", len(f.Anomalies), f.Anomalies)
	}
	if got := f.Anomalies[0].Classification; got != detect.ClassDrift {
		t.Errorf("classification = %q, want %q", got, detect.ClassDrift)
	}
	if f.Anomalies[0].Start != 0 || f.Anomalies[0].End != 499 {
		t.Errorf("drift range = [%d, %d], want [0, 499]", f.Anomalies[0].Start, f.Anomalies[0].End)
	}
	if f.Evidence.Correlation <= 0.8 {
		t.Errorf("correlation = %v, want > 0.8", f.Evidence.Correlation)
	}
	if f.Severity < 7 {
		t.Errorf("severity = %d, want >= 7", f.Severity)
	}
	if f.Evidence.DriftPercent <= 30 {
		t.Errorf("drift percent = %v, want > 30", f.Evidence.DriftPercent)
	}
	if f.Evidence.DriftSlope <= 0 {
		t.Errorf("drift slope = %v, want positive", f.Evidence.DriftSlope)
	}
}

func TestChangePoint_TransientExcursionIsNotDrift(t *testing.T) {
	c := NewChangePoint(testDetection())

	// Elevated plateau late in the series, fully recovered by the end.
	// The quartile percent change and the rank correlation both clear the
	// drift thresholds on this shape, but only a quarter of the points
	// ever left the baseline.
	values := make([]float64, 200)
	for i := range values {
		if i >= 140 && i < 190 {
			values[i] = 100
		} else {
			values[i] = 10
		}
	}

	f := mustAnalyze(t, c, values)
	if len(f.Anomalies) == 0 {
		t.Fatal("expected break anomalies at the plateau edges")
	}
	for _, a := range f.Anomalies {
		if a.Classification == detect.ClassDrift {
			t.Fatalf("anomaly %+v classified as drift, want localized breaks", a)
		}
	}
	if f.Evidence.DriftPercent < 100 {
		t.Errorf("drift percent = %v, want the plateau to dominate the last quartile", f.Evidence.DriftPercent)
	}
	if f.Severity < 5 {
		t.Errorf("severity = %d, want >= 5 from break strength", f.Severity)
	}
}

func TestChangePoint_SustainedShift(t *testing.T) {
	// Level shift up and back down. The quartile means match, so this must
	// not read as drift.
	c := NewChangePoint(testDetection())
	values := make([]float64, 150)
	for i := range values {
		switch {
		case i >= 60 && i < 90:
			values[i] = 50
		default:
			values[i] = 10
		}
	}

	f := mustAnalyze(t, c, values)
	if len(f.Anomalies) == 0 {
		t.Fatal("no anomalies, want sustained shifts around the level change")
	}
	for _, a := range f.Anomalies {
		if a.Classification != detect.ClassSustainedShift {
			t.Errorf("classification = %q, want %q", a.Classification, detect.ClassSustainedShift)
		}
	}
	if f.Severity < 5 {
		t.Errorf("severity = %d, want >= 5", f.Severity)
	}

	nearStep := false
	for _, cp := range f.Evidence.ChangePoints {
		if cp >= 50 && cp <= 70 {
			nearStep = true
		}
	}
	if !nearStep {
		t.Errorf("change points = %v, want one near index 60", f.Evidence.ChangePoints)
	}
}

func TestChangePoint_MinSeparationDedup(t *testing.T) {
	cfg := testDetection()
	cfg.MinSeparation = 50
	c := NewChangePoint(cfg)

	values := make([]float64, 150)
	for i := range values {
		if i >= 60 {
			values[i] = 50
		} else {
			values[i] = 10
		}
	}

	f := mustAnalyze(t, c, values)
	for i := 1; i < len(f.Evidence.ChangePoints); i++ {
		gap := f.Evidence.ChangePoints[i] - f.Evidence.ChangePoints[i-1]
		if gap < cfg.MinSeparation {
			t.Errorf("change points %v closer than min separation %d", f.Evidence.ChangePoints, cfg.MinSeparation)
		}
	}
}

func TestBucketRankCorrelation(t *testing.T) {
	tests := []struct {
		name   string
		values func() []float64
		want   float64
	}{
		{
			name: "strictly increasing",
			values: func() []float64 {
				out := make([]float64, 100)
				for i := range out {
					out[i] = float64(i)
				}
				return out
			},
			want: 1.0,
		},
		{
			name: "strictly decreasing",
			values: func() []float64 {
				out := make([]float64, 100)
				for i := range out {
					out[i] = float64(100 - i)
				}
				return out
			},
			want: -1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bucketRankCorrelation(tt.values(), driftBuckets)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("bucketRankCorrelation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMidRanks_Ties(t *testing.T) {
	ranks := midRanks([]float64{5, 1, 5, 3})
	want := []float64{3.5, 1, 3.5, 2}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("midRanks()[%d] = %v, want %v", i, ranks[i], want[i])
		}
	}
}
