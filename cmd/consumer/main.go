package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lltxwdk/minimars-server/internal/conf"

	"go.uber.org/zap"
)

// The consumer process owns the refund retry queue and the periodic sweeps.
func main() {
	confPath := flag.String("c", "internal/conf/config.yaml", "path to config file")
	flag.Parse()

	os.Exit(run(*confPath))
}

func run(confPath string) int {
	appConfig, err := conf.NewConfig(confPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	consumer, cleanup, err := InitializeConsumerApp(appConfig)
	if err != nil {
		log.Printf("failed to initialize consumer app: %v", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer.logger.Info("Consumer started",
		zap.String("mode", appConfig.Mode),
		zap.String("version", appConfig.Version),
		zap.Int("workers", len(consumer.workers)),
	)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		consumer.logger.Error("Consumer exited with error", zap.Error(err))
		return 1
	}

	consumer.logger.Info("Consumer shut down")
	return 0
}
