// Package learner maintains the adaptive per-analyzer state: EMA
// confidence, correctness tallies, derived weights, and the bounded history
// of high-confidence strategies. State is persisted to SQLite and survives
// restarts; a detection never fails because this store is unavailable.
package learner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/internal/store"
	"github.com/triageworks/hound/pkg/detect"
	"github.com/triageworks/hound/pkg/series"
	"go.uber.org/zap"
)

// PersistenceError wraps a learner store failure. It is always recoverable:
// weights fall back to priors and the dropped update is logged, not
// retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("learner store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PerformanceRecord is the persisted state for one analyzer identity.
// Records are created on first sight and never deleted.
type PerformanceRecord struct {
	Agent         string    `json:"agent"`
	Total         int       `json:"total"`    // Detections observed
	Correct       int       `json:"correct"`  // Confirmed-correct detections
	Feedback      int       `json:"feedback"` // Detections with any feedback
	EMAConfidence float64   `json:"ema_confidence"`
	Weight        float64   `json:"weight"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Accuracy returns Correct/Feedback, or the prior when no feedback has
// ever been supplied.
func (r PerformanceRecord) Accuracy(prior float64) float64 {
	if r.Feedback == 0 {
		return prior
	}
	return float64(r.Correct) / float64(r.Feedback)
}

// Strategy is a retained snapshot of a high-confidence verdict plus the
// series statistics that produced it.
type Strategy struct {
	ID           string    `json:"id"`
	Severity     int       `json:"severity"`
	Confidence   float64   `json:"confidence"`
	Agreement    float64   `json:"agreement"`
	AnomalyCount int       `json:"anomaly_count"`
	SeriesMean   float64   `json:"series_mean"`
	SeriesStdDev float64   `json:"series_stddev"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// Learner owns the performance store. Concurrent detections serialize
// their updates per analyzer identity, never behind one global lock.
type Learner struct {
	store  *store.SQLiteStore
	cfg    config.Learning
	logger *zap.Logger

	mu    sync.Mutex // Guards locks map only
	locks map[string]*sync.Mutex
}

// New runs the learner migrations and returns a ready Learner.
func New(ctx context.Context, st *store.SQLiteStore, cfg config.Learning, logger *zap.Logger) (*Learner, error) {
	if err := st.Migrate(ctx, "learner", migrations()); err != nil {
		return nil, fmt.Errorf("learner migrations: %w", err)
	}
	return &Learner{
		store:  st,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (l *Learner) lockFor(agent string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[agent]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[agent] = m
	return m
}

// ComputeWeights derives each reporting analyzer's weight as historical
// accuracy times its current confidence, renormalized to sum to 1. A store
// failure falls back to the prior accuracy for every agent and adds a
// warning; the detection proceeds.
func (l *Learner) ComputeWeights(ctx context.Context, findings []detect.Finding) (map[string]float64, []string) {
	weights := make(map[string]float64, len(findings))
	var warnings []string

	var sum float64
	for _, f := range findings {
		accuracy := l.cfg.PriorAccuracy
		rec, err := l.loadRecord(ctx, f.Agent)
		switch {
		case err != nil:
			perr := &PersistenceError{Op: "load", Err: err}
			l.logger.Warn("falling back to prior weights", zap.String("agent", f.Agent), zap.Error(perr))
			warnings = append(warnings, perr.Error())
		case rec != nil:
			accuracy = rec.Accuracy(l.cfg.PriorAccuracy)
		}
		w := accuracy * f.Confidence
		weights[f.Agent] = w
		sum += w
	}

	if sum == 0 {
		// Every product collapsed to zero. Documented fallback: equal
		// split, never zero weights.
		equal := 1.0 / float64(len(findings))
		for agent := range weights {
			weights[agent] = equal
		}
		return weights, warnings
	}
	for agent, w := range weights {
		weights[agent] = w / sum
	}
	return weights, warnings
}

// Record updates the per-agent state after a detection completes and
// persists a strategy when the verdict's confidence clears the threshold.
// feedback maps agent name to external correctness, and may be nil. Store
// failures are logged and the update dropped; the returned warnings let the
// caller surface the degradation.
func (l *Learner) Record(ctx context.Context, verdict detect.Verdict, stats series.Stats, feedback map[string]bool) (*Strategy, []string) {
	var warnings []string

	// The recompute's load warnings duplicate what ComputeWeights already
	// handed the caller for this detection; updateRecord reports any store
	// failure on its own.
	weights, _ := l.ComputeWeights(ctx, verdict.Findings)
	for _, f := range verdict.Findings {
		if err := l.updateRecord(ctx, f, weights[f.Agent], feedback); err != nil {
			perr := &PersistenceError{Op: "update", Err: err}
			l.logger.Warn("dropping performance update", zap.String("agent", f.Agent), zap.Error(perr))
			warnings = append(warnings, perr.Error())
		}
	}

	if verdict.Confidence <= l.cfg.StrategyThreshold {
		return nil, warnings
	}

	strategy := &Strategy{
		ID:           uuid.NewString(),
		Severity:     verdict.Severity,
		Confidence:   verdict.Confidence,
		Agreement:    verdict.Agreement,
		AnomalyCount: len(verdict.Anomalies),
		SeriesMean:   stats.Mean,
		SeriesStdDev: stats.StdDev,
		Summary:      verdict.Summary,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.storeStrategy(ctx, strategy); err != nil {
		perr := &PersistenceError{Op: "store strategy", Err: err}
		l.logger.Warn("dropping strategy", zap.String("id", strategy.ID), zap.Error(perr))
		return nil, append(warnings, perr.Error())
	}
	return strategy, warnings
}

// updateRecord applies one detection to one agent's record. The write is a
// single upsert, so a crash mid-update leaves the previous row intact.
func (l *Learner) updateRecord(ctx context.Context, f detect.Finding, weight float64, feedback map[string]bool) error {
	lock := l.lockFor(f.Agent)
	lock.Lock()
	defer lock.Unlock()

	rec, err := l.loadRecord(ctx, f.Agent)
	if err != nil {
		return err
	}
	if rec == nil {
		// First sight: EMA starts at the first observed confidence.
		rec = &PerformanceRecord{Agent: f.Agent, EMAConfidence: f.Confidence}
	} else {
		rec.EMAConfidence = (1-l.cfg.EMAAlpha)*rec.EMAConfidence + l.cfg.EMAAlpha*f.Confidence
	}

	rec.Total++
	if correct, ok := feedback[f.Agent]; ok {
		rec.Feedback++
		if correct {
			rec.Correct++
		}
	}
	rec.Weight = weight
	rec.UpdatedAt = time.Now().UTC()

	_, err = l.store.DB().ExecContext(ctx, `
		INSERT INTO agent_performance (agent, total, correct, feedback, ema_confidence, weight, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent) DO UPDATE SET
			total = excluded.total,
			correct = excluded.correct,
			feedback = excluded.feedback,
			ema_confidence = excluded.ema_confidence,
			weight = excluded.weight,
			updated_at = excluded.updated_at`,
		rec.Agent, rec.Total, rec.Correct, rec.Feedback, rec.EMAConfidence, rec.Weight,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (l *Learner) loadRecord(ctx context.Context, agent string) (*PerformanceRecord, error) {
	var rec PerformanceRecord
	var updatedAt string
	err := l.store.DB().QueryRowContext(ctx, `
		SELECT agent, total, correct, feedback, ema_confidence, weight, updated_at
		FROM agent_performance WHERE agent = ?`, agent,
	).Scan(&rec.Agent, &rec.Total, &rec.Correct, &rec.Feedback, &rec.EMAConfidence, &rec.Weight, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

// storeStrategy inserts the strategy and evicts the oldest rows beyond
// capacity (FIFO by insertion order).
func (l *Learner) storeStrategy(ctx context.Context, s *Strategy) error {
	return l.store.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO strategies (id, severity, confidence, agreement, anomaly_count, series_mean, series_stddev, summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Severity, s.Confidence, s.Agreement, s.AnomalyCount,
			s.SeriesMean, s.SeriesStdDev, s.Summary, s.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM strategies WHERE rowid NOT IN (
				SELECT rowid FROM strategies ORDER BY rowid DESC LIMIT ?
			)`, l.cfg.StrategyCapacity)
		return err
	})
}

// Records returns every performance record, sorted by agent.
func (l *Learner) Records(ctx context.Context) ([]PerformanceRecord, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT agent, total, correct, feedback, ema_confidence, weight, updated_at
		FROM agent_performance ORDER BY agent`)
	if err != nil {
		return nil, &PersistenceError{Op: "list records", Err: err}
	}
	defer rows.Close()

	var out []PerformanceRecord
	for rows.Next() {
		var rec PerformanceRecord
		var updatedAt string
		if err := rows.Scan(&rec.Agent, &rec.Total, &rec.Correct, &rec.Feedback,
			&rec.EMAConfidence, &rec.Weight, &updatedAt); err != nil {
			return nil, &PersistenceError{Op: "scan record", Err: err}
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Strategies returns the stored strategies, newest first.
func (l *Learner) Strategies(ctx context.Context) ([]Strategy, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, severity, confidence, agreement, anomaly_count, series_mean, series_stddev, summary, created_at
		FROM strategies ORDER BY rowid DESC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list strategies", Err: err}
	}
	defer rows.Close()

	var out []Strategy
	for rows.Next() {
		var s Strategy
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Severity, &s.Confidence, &s.Agreement, &s.AnomalyCount,
			&s.SeriesMean, &s.SeriesStdDev, &s.Summary, &createdAt); err != nil {
			return nil, &PersistenceError{Op: "scan strategy", Err: err}
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
