package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/triageworks/hound/pkg/series"
)

// loadCSV reads a series from a CSV file with a "value" column and an
// optional "timestamp" column (RFC 3339 or unix seconds). A header row is
// required. Rows without a timestamp are spaced one minute apart.
func loadCSV(path string) (series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%q: need a header row and at least one data row", path)
	}

	valueCol, tsCol := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "value":
			valueCol = i
		case "timestamp":
			tsCol = i
		}
	}
	if valueCol == -1 {
		return nil, fmt.Errorf("%q: no \"value\" column in header %v", path, rows[0])
	}

	out := make(series.Series, 0, len(rows)-1)
	start := time.Now().Add(-time.Duration(len(rows)-1) * time.Minute)
	for i, row := range rows[1:] {
		value, err := strconv.ParseFloat(strings.TrimSpace(row[valueCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%q row %d: parse value %q: %w", path, i+2, row[valueCol], err)
		}

		ts := start.Add(time.Duration(i) * time.Minute)
		if tsCol != -1 {
			ts, err = parseTimestamp(strings.TrimSpace(row[tsCol]))
			if err != nil {
				return nil, fmt.Errorf("%q row %d: %w", path, i+2, err)
			}
		}
		out = append(out, series.Point{Value: value, Timestamp: ts})
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: want RFC 3339 or unix seconds", s)
}
