package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"github.com/triageworks/hound/internal/analyzer"
	"github.com/triageworks/hound/internal/config"
	"github.com/triageworks/hound/internal/event"
	"github.com/triageworks/hound/internal/learner"
	"github.com/triageworks/hound/internal/llm/ollama"
	"github.com/triageworks/hound/internal/orchestrator"
	"github.com/triageworks/hound/internal/store"
	"github.com/triageworks/hound/internal/version"
	"github.com/triageworks/hound/pkg/llm"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "detect":
		runDetect(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "version":
		fmt.Println(version.Info())
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: hound <command> [flags]

commands:
  detect <file.csv>   run anomaly detection over a CSV series
  stats               show learner performance summary
  version             print version information`)
}

// bootstrap loads config, builds the logger, and opens the database. Shared
// by the detect and stats commands.
func bootstrap(configPath string) (*viper.Viper, *zap.Logger, *store.SQLiteStore, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := store.New(v.GetString("database.path"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.CheckVersion(context.Background(), version.Version); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return v, logger, db, nil
}

func runDetect(args []string) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	contextText := fs.String("context", "", "historical context for the root-cause analyzer")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hound detect [flags] <file.csv>")
		os.Exit(2)
	}

	v, logger, db, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hound: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	defer db.Close()

	var detectCfg config.Detection
	if err := v.UnmarshalKey("detect", &detectCfg); err != nil {
		logger.Fatal("invalid detect configuration", zap.Error(err))
	}
	var learnCfg config.Learning
	if err := v.UnmarshalKey("learner", &learnCfg); err != nil {
		logger.Fatal("invalid learner configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var narrative llm.Provider
	if v.GetBool("llm.enabled") {
		var llmCfg ollama.Config
		if err := v.UnmarshalKey("llm", &llmCfg); err != nil {
			logger.Fatal("invalid llm configuration", zap.Error(err))
		}
		provider, err := ollama.New(llmCfg, logger.Named("ollama"))
		if err != nil {
			logger.Fatal("ollama provider", zap.Error(err))
		}
		narrative = llm.RateLimited(provider, v.GetFloat64("llm.rps"))
	}

	input, err := loadCSV(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hound: %v\n", err)
		os.Exit(1)
	}

	l, err := learner.New(ctx, db, learnCfg, logger.Named("learner"))
	if err != nil {
		logger.Fatal("learner init", zap.Error(err))
	}

	bus := event.NewBus(logger.Named("event"))
	o := orchestrator.New(
		analyzer.DefaultSet(detectCfg, narrative, logger),
		l, bus, detectCfg.AnalyzerTimeout, logger.Named("orchestrator"),
	)

	verdict, err := o.Investigate(ctx, analyzer.Input{Series: input, Context: *contextText}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hound: detection failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		logger.Fatal("encode verdict", zap.Error(err))
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	fs.Parse(args)

	v, logger, db, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hound: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	defer db.Close()

	var learnCfg config.Learning
	if err := v.UnmarshalKey("learner", &learnCfg); err != nil {
		logger.Fatal("invalid learner configuration", zap.Error(err))
	}

	ctx := context.Background()
	l, err := learner.New(ctx, db, learnCfg, logger.Named("learner"))
	if err != nil {
		logger.Fatal("learner init", zap.Error(err))
	}

	summary, err := l.Summarize(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hound: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Fatal("encode summary", zap.Error(err))
	}
}
