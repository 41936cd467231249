// Package series provides the time-series input type for the Hound detection
// engine, along with input validation and descriptive statistics.
// This package is Apache 2.0 licensed, part of the public SDK.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Point is a single observation in a time series.
type Point struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Series is an ordered sequence of points. Treated as immutable once passed
// into the detection engine; analyzers receive it read-only.
type Series []Point

// DataError describes malformed input: empty series or non-finite values.
// It is fatal for a detection; no analyzer runs on invalid input.
type DataError struct {
	Reason string
	Index  int // Offending index, -1 when not point-specific
}

func (e *DataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid series data at index %d: %s", e.Index, e.Reason)
	}
	return "invalid series data: " + e.Reason
}

// FromValues builds a Series from raw values with synthetic timestamps
// spaced one interval apart starting at start.
func FromValues(values []float64, start time.Time, interval time.Duration) Series {
	s := make(Series, len(values))
	for i, v := range values {
		s[i] = Point{Value: v, Timestamp: start.Add(time.Duration(i) * interval)}
	}
	return s
}

// Validate checks the series for structural problems. Returns a *DataError
// describing the first problem found, or nil.
func (s Series) Validate() error {
	if len(s) == 0 {
		return &DataError{Reason: "empty series", Index: -1}
	}
	for i, p := range s {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return &DataError{Reason: fmt.Sprintf("non-finite value %v", p.Value), Index: i}
		}
	}
	return nil
}

// Values returns the raw value slice. The result is a copy; mutating it does
// not affect the series.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Stats holds descriptive statistics for a series.
type Stats struct {
	Mean   float64
	StdDev float64
	Median float64
	MAD    float64 // Median absolute deviation (unscaled)
	Min    float64
	Max    float64
}

// Describe computes descriptive statistics in one pass over the series.
// The series must be non-empty.
func (s Series) Describe() Stats {
	n := len(s)
	values := s.Values()

	var sum float64
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(n)

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n))

	med := median(values)
	dev := make([]float64, n)
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}

	return Stats{
		Mean:   mean,
		StdDev: std,
		Median: med,
		MAD:    median(dev),
		Min:    min,
		Max:    max,
	}
}

// QuartileMeans returns the mean of the first and last quartile of the
// series by index. Quartiles shorter than one point collapse to the
// nearest point.
func (s Series) QuartileMeans() (first, last float64) {
	n := len(s)
	q := n / 4
	if q < 1 {
		q = 1
	}
	var sumFirst, sumLast float64
	for i := 0; i < q; i++ {
		sumFirst += s[i].Value
		sumLast += s[n-1-i].Value
	}
	return sumFirst / float64(q), sumLast / float64(q)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks.
func (s Series) Percentile(p float64) float64 {
	values := s.Values()
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}
	rank := p / 100 * float64(len(values)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}

// median sorts a copy of values and returns the middle element, or the mean
// of the two middle elements for even lengths.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
