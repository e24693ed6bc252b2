// File: cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-request-orchestrator/internal/config"
	"ai-request-orchestrator/internal/domain/ports/repository"
	aiAdapters "ai-request-orchestrator/internal/infra/adapters/ai"
	pg "ai-request-orchestrator/internal/infra/db/postgres"
	"ai-request-orchestrator/internal/infra/logging"
	"ai-request-orchestrator/internal/infra/metrics"
	red "ai-request-orchestrator/internal/infra/redis"
	"ai-request-orchestrator/internal/infra/worker"
)

// Standalone queue consumer. Run as many replicas as throughput requires;
// instances coordinate only through the queue and the record store.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.Queue.Enabled {
		log.Fatal("queue.enabled must be true for the worker binary")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	var records repository.RecordStore
	switch cfg.Store.Backend {
	case "postgres":
		pool, perr := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if perr != nil {
			log.Fatalf("postgres: %v", perr)
		}
		defer pool.Close()
		records = pg.NewRecordRepo(pool)
	default:
		records = red.NewRecordRepo(redisClient, cfg.Store.RecordTTL)
	}

	queue := red.NewQueue(redisClient, cfg.Queue.Name, cfg.Queue.Block)

	proc, err := aiAdapters.NewProcessorFromConfig(ctx, &cfg.AI, cfg.Runtime.Dev, logger)
	if err != nil {
		log.Fatalf("processor: %v", err)
	}

	pool := worker.NewPool(cfg.Queue.Workers, logger)
	pool.Start(ctx)
	consumer := worker.NewConsumer(queue, records, proc, cfg.Queue.MaxAttempts, logger)
	go consumer.Start(ctx, pool)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	pool.Stop()
}
