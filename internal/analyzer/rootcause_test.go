package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/triageworks/hound/pkg/llm/llmtest"
	"github.com/triageworks/hound/pkg/series"
	"go.uber.org/zap"
)

func newTestRootCause(stub *llmtest.Stub) *RootCause {
	if stub == nil {
		return NewRootCause(testDetection(), nil, zap.NewNop())
	}
	return NewRootCause(testDetection(), stub, zap.NewNop())
}

func periodicSpikes() []float64 {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 10
	}
	for _, idx := range []int{10, 30, 50, 70, 90} {
		values[idx] = 100
	}
	return values
}

func TestRootCause_PeriodicSpikes(t *testing.T) {
	r := newTestRootCause(nil)

	f := mustAnalyze(t, r, periodicSpikes())
	if !f.Inferential {
		t.Error("Inferential = false, want true")
	}
	if len(f.Anomalies) != 5 {
		t.Fatalf("anomalies = %d, want 5 clusters: %+v", len(f.Anomalies), f.Anomalies)
	}
	if len(f.Evidence.Hypotheses) == 0 || f.Evidence.Hypotheses[0] != HypScheduled {
		t.Errorf("hypotheses = %v, want primary %q", f.Evidence.Hypotheses, HypScheduled)
	}
}

func TestRootCause_SingleLateCluster(t *testing.T) {
	r := newTestRootCause(nil)
	values := make([]float64, 100)
	for i := range values {
		values[i] = 10
	}
	values[85] = 100
	values[86] = 100

	f := mustAnalyze(t, r, values)
	if len(f.Evidence.Hypotheses) == 0 || f.Evidence.Hypotheses[0] != HypDeployment {
		t.Errorf("hypotheses = %v, want primary %q", f.Evidence.Hypotheses, HypDeployment)
	}
}

func TestRootCause_IsolatedEarlyBurst(t *testing.T) {
	r := newTestRootCause(nil)
	values := make([]float64, 100)
	for i := range values {
		values[i] = 10
	}
	values[20] = 100
	values[21] = 100

	f := mustAnalyze(t, r, values)
	if len(f.Evidence.Hypotheses) == 0 || f.Evidence.Hypotheses[0] != HypExternalDep {
		t.Errorf("hypotheses = %v, want primary %q", f.Evidence.Hypotheses, HypExternalDep)
	}
}

func TestRootCause_ResourceExhaustion(t *testing.T) {
	r := newTestRootCause(nil)
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	for i := 93; i <= 97; i++ {
		values[i] = 500
	}

	f := mustAnalyze(t, r, values)
	if len(f.Evidence.Hypotheses) == 0 || f.Evidence.Hypotheses[0] != HypResource {
		t.Errorf("hypotheses = %v, want primary %q", f.Evidence.Hypotheses, HypResource)
	}
	if f.Evidence.Correlation < 0.7 {
		t.Errorf("autocorrelation = %v, want >= 0.7", f.Evidence.Correlation)
	}
}

func TestRootCause_NoOutliers(t *testing.T) {
	stub := &llmtest.Stub{Content: "should not be called"}
	r := newTestRootCause(stub)

	values := make([]float64, 50)
	for i := range values {
		values[i] = 7
	}

	f := mustAnalyze(t, r, values)
	if len(f.Anomalies) != 0 {
		t.Errorf("anomalies = %d, want 0", len(f.Anomalies))
	}
	if f.Severity != 0 {
		t.Errorf("severity = %d, want 0", f.Severity)
	}
	if len(stub.Prompts) != 0 {
		t.Errorf("narrative called %d times on a clean series, want 0", len(stub.Prompts))
	}
}

func TestRootCause_NarrativeSummary(t *testing.T) {
	stub := &llmtest.Stub{Content: "The nightly backup job saturated disk I/O. Check the 02:00 cron schedule."}
	r := newTestRootCause(stub)

	f := mustAnalyze(t, r, periodicSpikes())
	if f.Summary != stub.Content {
		t.Errorf("summary = %q, want the narrative text", f.Summary)
	}
	if len(stub.Prompts) != 1 {
		t.Fatalf("narrative called %d times, want 1", len(stub.Prompts))
	}
	if !strings.Contains(stub.Prompts[0], HypScheduled) {
		t.Errorf("prompt does not mention the hypothesis: %q", stub.Prompts[0])
	}
}

func TestRootCause_NarrativeFailureDegrades(t *testing.T) {
	stub := &llmtest.Stub{Err: errors.New("connection refused")}
	r := newTestRootCause(stub)

	f := mustAnalyze(t, r, periodicSpikes())
	if !strings.Contains(f.Summary, HypScheduled) {
		t.Errorf("summary = %q, want deterministic fallback naming %q", f.Summary, HypScheduled)
	}
}

func TestRootCause_ContextRaisesConfidence(t *testing.T) {
	r := newTestRootCause(nil)
	values := periodicSpikes()

	without := mustAnalyze(t, r, values)

	s := series.FromValues(values, time.Unix(0, 0), time.Minute)
	with, err := r.Analyze(context.Background(), Input{Series: s, Context: "deploy window overlaps the spikes"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if with.Confidence <= without.Confidence {
		t.Errorf("confidence with context = %v, want > %v", with.Confidence, without.Confidence)
	}
}
