// Package config loads Hound configuration via Viper and builds the Zap
// logger from it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Detection holds the tunable thresholds for the detection engine.
type Detection struct {
	ZScoreThreshold  float64       `mapstructure:"zscore_threshold"`
	Robust           bool          `mapstructure:"robust"`
	MergeGap         int           `mapstructure:"merge_gap"`
	BaselineWindow   int           `mapstructure:"baseline_window"`
	LocalWindow      int           `mapstructure:"local_window"`
	BreakThreshold   float64       `mapstructure:"break_threshold"`
	MinSeparation    int           `mapstructure:"min_separation"`
	DriftPercent     float64       `mapstructure:"drift_percent"`
	DriftCorrelation float64       `mapstructure:"drift_correlation"`
	AnalyzerTimeout  time.Duration `mapstructure:"analyzer_timeout"`
}

// Learning holds the autonomous learner settings.
type Learning struct {
	EMAAlpha          float64 `mapstructure:"ema_alpha"`
	StrategyThreshold float64 `mapstructure:"strategy_threshold"`
	StrategyCapacity  int     `mapstructure:"strategy_capacity"`
	PriorAccuracy     float64 `mapstructure:"prior_accuracy"`
}

// LLM holds the optional narrative backend settings.
type LLM struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
}

// Load reads configuration from file and environment variables.
// An explicit path wins; otherwise hound.yaml is searched in the working
// directory, ~/.config/hound, and /etc/hound. A missing file is not an
// error; defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("database.path", "hound.db")

	v.SetDefault("detect.zscore_threshold", 3.0)
	v.SetDefault("detect.robust", true)
	v.SetDefault("detect.merge_gap", 1)
	v.SetDefault("detect.baseline_window", 30)
	v.SetDefault("detect.local_window", 10)
	v.SetDefault("detect.break_threshold", 4.0)
	v.SetDefault("detect.min_separation", 10)
	v.SetDefault("detect.drift_percent", 30.0)
	v.SetDefault("detect.drift_correlation", 0.5)
	v.SetDefault("detect.analyzer_timeout", "30s")

	v.SetDefault("learner.ema_alpha", 0.1)
	v.SetDefault("learner.strategy_threshold", 0.85)
	v.SetDefault("learner.strategy_capacity", 100)
	v.SetDefault("learner.prior_accuracy", 0.5)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen2.5:32b")
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.rps", 1.0)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hound")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hound")
		v.AddConfigPath("/etc/hound")
	}

	// Environment variable support: HOUND_DETECT_ZSCORE_THRESHOLD=2.5
	v.SetEnvPrefix("HOUND")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
