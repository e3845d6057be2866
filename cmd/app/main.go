package main

import (
	"flag"
	"log"
	"os"

	"NiftyEdge/internal/di"
	"NiftyEdge/pkg/config"
	"NiftyEdge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	l.Info("starting niftyedge api",
		logger.String("env", cfg.Environment),
		logger.String("artifacts", cfg.Output.Dir),
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		logger.Bool("kafka", cfg.Kafka.Enabled),
		logger.Bool("queue", cfg.Queue.Enabled))

	app, cleanup, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("app initialization failed", logger.Error(err))
		os.Exit(1)
	}

	// Run application (blocks until signal)
	err = app.Run()
	cleanup()
	if err != nil {
		l.Error("app error", logger.Error(err))
		os.Exit(1)
	}
}
