// Package orchestrator runs the configured analyzers concurrently over one
// series, collects their findings under a deadline, and drives the full
// detection pipeline: weights, synthesis, learning, events, metrics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/triageworks/hound/internal/analyzer"
	"github.com/triageworks/hound/internal/event"
	"github.com/triageworks/hound/internal/learner"
	"github.com/triageworks/hound/internal/metrics"
	"github.com/triageworks/hound/internal/synth"
	"github.com/triageworks/hound/pkg/detect"
	"github.com/triageworks/hound/pkg/series"
	"go.uber.org/zap"
)

// Orchestrator coordinates one detection at a time per call; calls are safe
// to run concurrently. The learner is the only shared mutable state and
// serializes its own writes.
type Orchestrator struct {
	analyzers []analyzer.Analyzer
	learner   *learner.Learner
	bus       *event.Bus
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an orchestrator. timeout bounds each analyzer individually.
func New(analyzers []analyzer.Analyzer, l *learner.Learner, bus *event.Bus, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		analyzers: analyzers,
		learner:   l,
		bus:       bus,
		timeout:   timeout,
		logger:    logger,
	}
}

type result struct {
	agent   string
	finding *detect.Finding
	failure *detect.AgentFailure
}

// Dispatch runs every analyzer concurrently against the input and returns
// the findings that completed plus a failure record per analyzer that did
// not. The input series is validated first; a DataError aborts the whole
// detection before any analyzer runs.
func (o *Orchestrator) Dispatch(ctx context.Context, in analyzer.Input) ([]detect.Finding, []detect.AgentFailure, error) {
	if err := in.Series.Validate(); err != nil {
		return nil, nil, err
	}

	results := make(chan result, len(o.analyzers))
	for _, a := range o.analyzers {
		go o.runOne(ctx, a, in, results)
	}

	var findings []detect.Finding
	var failures []detect.AgentFailure
	for range o.analyzers {
		r := <-results
		if r.failure != nil {
			failures = append(failures, *r.failure)
			metrics.AnalyzerFailuresTotal.WithLabelValues(r.agent, r.failure.Reason).Inc()
			continue
		}
		findings = append(findings, *r.finding)
	}
	return findings, failures, nil
}

// runOne executes a single analyzer under its own timeout, converting
// panics and errors into failure records. A result that arrives after the
// deadline is discarded, never merged.
func (o *Orchestrator) runOne(ctx context.Context, a analyzer.Analyzer, in analyzer.Input, results chan<- result) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("analyzer panicked",
					zap.String("agent", a.Name()),
					zap.Any("panic", r))
				done <- result{agent: a.Name(), failure: &detect.AgentFailure{
					Agent:  a.Name(),
					Reason: detect.FailError,
					Detail: fmt.Sprintf("panic: %v", r),
				}}
			}
		}()

		finding, err := a.Analyze(callCtx, in)
		if err != nil {
			done <- result{agent: a.Name(), failure: failureFor(a.Name(), err)}
			return
		}
		done <- result{agent: a.Name(), finding: finding}
	}()

	select {
	case r := <-done:
		results <- r
	case <-callCtx.Done():
		// A cancelled parent (shutdown signal) is not the analyzer's
		// fault and must not read as a deadline miss.
		reason := detect.FailTimeout
		if errors.Is(callCtx.Err(), context.Canceled) {
			reason = detect.FailCancelled
		}
		results <- result{agent: a.Name(), failure: &detect.AgentFailure{
			Agent:  a.Name(),
			Reason: reason,
			Detail: callCtx.Err().Error(),
		}}
	}
}

func failureFor(agent string, err error) *detect.AgentFailure {
	reason := detect.FailError
	var de *series.DataError
	if errors.As(err, &de) {
		reason = detect.FailMalformedInput
	} else if errors.Is(err, context.DeadlineExceeded) {
		reason = detect.FailTimeout
	} else if errors.Is(err, context.Canceled) {
		reason = detect.FailCancelled
	}
	return &detect.AgentFailure{Agent: agent, Reason: reason, Detail: err.Error()}
}

// Investigate is the full detection pipeline: dispatch analyzers, weight
// and synthesize their findings, record the outcome, publish events.
// feedback maps agent name to external correctness and may be nil.
func (o *Orchestrator) Investigate(ctx context.Context, in analyzer.Input, feedback map[string]bool) (*detect.Verdict, error) {
	start := time.Now()

	findings, failures, err := o.Dispatch(ctx, in)
	if err != nil {
		metrics.DetectionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(findings) == 0 {
		metrics.DetectionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", detect.ErrNoAnalyzers, describeFailures(failures))
	}

	weights, warnings := o.learner.ComputeWeights(ctx, findings)

	verdict := synth.Synthesize(findings, weights, in.Context != "")
	verdict.ID = uuid.NewString()
	verdict.GeneratedAt = time.Now().UTC()
	verdict.Failures = failures
	verdict.Warnings = append(warnings, verdict.Warnings...)

	strategy, recordWarnings := o.learner.Record(ctx, verdict, in.Series.Describe(), feedback)
	verdict.Warnings = append(verdict.Warnings, recordWarnings...)

	o.publish(ctx, verdict, strategy)

	metrics.DetectionsTotal.WithLabelValues("ok").Inc()
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	metrics.VerdictSeverity.Observe(float64(verdict.Severity))

	o.logger.Info("detection complete",
		zap.String("verdict_id", verdict.ID),
		zap.Int("severity", verdict.Severity),
		zap.Float64("confidence", verdict.Confidence),
		zap.Int("findings", len(findings)),
		zap.Int("failures", len(failures)),
		zap.Duration("elapsed", time.Since(start)))

	return &verdict, nil
}

// publish notifies bus subscribers without blocking the detection.
func (o *Orchestrator) publish(ctx context.Context, verdict detect.Verdict, strategy *learner.Strategy) {
	if o.bus == nil {
		return
	}
	o.bus.PublishAsync(ctx, event.Event{
		Topic:     event.TopicVerdictComputed,
		Source:    "orchestrator",
		Timestamp: time.Now(),
		Payload:   verdict,
	})
	if strategy != nil {
		o.bus.PublishAsync(ctx, event.Event{
			Topic:     event.TopicStrategyStored,
			Source:    "orchestrator",
			Timestamp: time.Now(),
			Payload:   *strategy,
		})
	}
}

func describeFailures(failures []detect.AgentFailure) string {
	if len(failures) == 0 {
		return "no analyzers registered"
	}
	out := ""
	for i, f := range failures {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s (%s: %s)", f.Agent, f.Reason, f.Detail)
	}
	return out
}
