package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV_ValueOnly(t *testing.T) {
	path := writeCSV(t, "value\n1.5\n2.5\n3.5\n")

	s, err := loadCSV(path)
	if err != nil {
		t.Fatalf("loadCSV() error = %v", err)
	}
	if len(s) != 3 {
		t.Fatalf("len = %d, want 3", len(s))
	}
	if s[1].Value != 2.5 {
		t.Errorf("s[1].Value = %v, want 2.5", s[1].Value)
	}
	if got := s[1].Timestamp.Sub(s[0].Timestamp); got != time.Minute {
		t.Errorf("synthetic spacing = %v, want 1m", got)
	}
}

func TestLoadCSV_Timestamps(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    time.Time
	}{
		{
			name:    "rfc3339",
			content: "timestamp,value\n2026-08-01T12:00:00Z,5\n2026-08-01T12:01:00Z,6\n",
			want:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "unix seconds",
			content: "timestamp,value\n1754049600,5\n1754049660,6\n",
			want:    time.Unix(1754049600, 0).UTC(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := loadCSV(writeCSV(t, tt.content))
			if err != nil {
				t.Fatalf("loadCSV() error = %v", err)
			}
			if !s[0].Timestamp.Equal(tt.want) {
				t.Errorf("timestamp = %v, want %v", s[0].Timestamp, tt.want)
			}
		})
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no value column", "time,metric\n1,2\n"},
		{"header only", "value\n"},
		{"bad value", "value\nnot-a-number\n"},
		{"bad timestamp", "timestamp,value\nyesterday,5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadCSV(writeCSV(t, tt.content)); err == nil {
				t.Error("loadCSV() = nil error, want failure")
			}
		})
	}
}
