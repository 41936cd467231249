package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestNewLogger_Defaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewLogger_DebugLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "debug")
	v.Set("logging.format", "json")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "warn")
	v.Set("logging.format", "console")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "info")
	v.Set("logging.format", "json")
	v.Set("logging.file", filepath.Join(t.TempDir(), "hound.log"))
	v.Set("logging.max_size_mb", 1)
	v.Set("logging.max_backups", 1)

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("rotation sink works")
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "banana")
	v.Set("logging.format", "json")

	_, err := NewLogger(v)
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "info")
	v.Set("logging.format", "xml")

	_, err := NewLogger(v)
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
}

func TestLoad_Defaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := v.GetFloat64("detect.zscore_threshold"); got != 3.0 {
		t.Errorf("detect.zscore_threshold = %v, want 3.0", got)
	}
	if got := v.GetFloat64("learner.strategy_threshold"); got != 0.85 {
		t.Errorf("learner.strategy_threshold = %v, want 0.85", got)
	}

	var d Detection
	if err := v.UnmarshalKey("detect", &d); err != nil {
		t.Fatalf("UnmarshalKey(detect): %v", err)
	}
	if d.BaselineWindow != 30 || d.LocalWindow != 10 {
		t.Errorf("window defaults = %d/%d, want 30/10", d.BaselineWindow, d.LocalWindow)
	}
}
