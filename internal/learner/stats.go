package learner

import (
	"context"
	"fmt"
)

// Summary is the aggregate learner state shown by `hound stats`.
type Summary struct {
	TotalDetections  int                 `json:"total_detections"`
	StrategiesStored int                 `json:"strategies_stored"`
	Agents           []PerformanceRecord `json:"agents"`
	Suggestions      []string            `json:"suggestions,omitempty"`
}

// Summarize builds the performance summary from the store.
func (l *Learner) Summarize(ctx context.Context) (*Summary, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}

	var count int
	if err := l.store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM strategies").Scan(&count); err != nil {
		return nil, &PersistenceError{Op: "count strategies", Err: err}
	}

	total := 0
	for _, r := range records {
		if r.Total > total {
			total = r.Total
		}
	}

	return &Summary{
		TotalDetections:  total,
		StrategiesStored: count,
		Agents:           records,
		Suggestions:      l.suggestions(records),
	}, nil
}

// suggestions flags agents whose track record warrants tuning attention.
func (l *Learner) suggestions(records []PerformanceRecord) []string {
	var out []string
	for _, r := range records {
		if r.Feedback >= 10 {
			if acc := r.Accuracy(l.cfg.PriorAccuracy); acc < 0.7 {
				out = append(out, fmt.Sprintf("%s accuracy is %.0f%% over %d feedback samples: review its thresholds", r.Agent, acc*100, r.Feedback))
			}
		}
		if r.Total > 0 && r.EMAConfidence < 0.6 {
			out = append(out, fmt.Sprintf("%s average confidence is low (%.2f): its findings may need more data per series", r.Agent, r.EMAConfidence))
		}
	}
	return out
}
