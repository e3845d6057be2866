package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NiftyEdge/internal/di"
	"NiftyEdge/pkg/config"
	"NiftyEdge/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config file path")
		input      = flag.String("input", "", "input Excel/CSV file (overrides input.path)")
		output     = flag.String("output", "", "output directory (overrides output.dir)")
		headerRow  = flag.Int("header-row", -1, "1-based header row, 0 to auto-detect (overrides input.header_row)")
		mode       = flag.String("mode", "", "threshold mode: rolling or frozen (overrides thresholds.mode)")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *input != "" {
		cfg.Input.Path = *input
	}
	if *output != "" {
		cfg.Output.Dir = *output
	}
	if *headerRow >= 0 {
		cfg.Input.HeaderRow = *headerRow
	}
	if *mode != "" {
		cfg.Thresholds.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	run, cleanup, err := di.InitializeBatch(cfg, l)
	if err != nil {
		l.Error("backtest initialization failed", logger.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	art, err := run.Execute(ctx)
	if err != nil {
		l.Error("backtest failed", logger.String("input", cfg.Input.Path), logger.Error(err))
		cleanup()
		os.Exit(1)
	}

	l.Info("artifacts written",
		logger.String("dir", cfg.Output.Dir),
		logger.String("run_id", art.RunID),
		logger.Int("rows", art.Rows),
		logger.Any("thresholds", art.Thresholds),
		logger.Duration("elapsed_ms", time.Since(start)))
}
