// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-request-orchestrator/internal/config"
	"ai-request-orchestrator/internal/domain/ports/adapter"
	"ai-request-orchestrator/internal/domain/ports/repository"
	aiAdapters "ai-request-orchestrator/internal/infra/adapters/ai"
	"ai-request-orchestrator/internal/infra/api"
	"ai-request-orchestrator/internal/infra/api/apiv1"
	pg "ai-request-orchestrator/internal/infra/db/postgres"
	"ai-request-orchestrator/internal/infra/logging"
	"ai-request-orchestrator/internal/infra/metrics"
	red "ai-request-orchestrator/internal/infra/redis"
	"ai-request-orchestrator/internal/infra/worker"
	"ai-request-orchestrator/internal/orchestrator"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (header auth, echo processor)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()

	// ---- Redis (record store and/or queue) ----
	var redisClient *red.Client
	if cfg.Store.Backend == "redis" || cfg.Queue.Enabled {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
	}

	// ---- Record store ----
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

	// ---- Work queue ----
	var queue adapter.WorkQueue
	if cfg.Queue.Enabled {
		queue = red.NewQueue(redisClient, cfg.Queue.Name, cfg.Queue.Block)
	} else {
		logger.Warn().Msg("queue disabled, all requests run inline")
	}

	// ---- Processor ----
	proc, err := aiAdapters.NewProcessorFromConfig(ctx, &cfg.AI, cfg.Runtime.Dev, logger)
	if err != nil {
		log.Fatalf("processor: %v", err)
	}

	// ---- Orchestrator ----
	waiter := orchestrator.NewWaiter(records, cfg.Orchestrator.PollInitial(), cfg.Orchestrator.PollMax(), logger)
	dispatcher := orchestrator.NewDispatcher(records, queue, waiter, cfg.Orchestrator.MaxSyncWait(), logger)

	// ---- Embedded consumer (single-process deployments) ----
	if cfg.Queue.Enabled && cfg.Queue.Embedded {
		pool := worker.NewPool(cfg.Queue.Workers, logger)
		pool.Start(ctx)
		consumer := worker.NewConsumer(queue, records, proc, cfg.Queue.MaxAttempts, logger)
		go consumer.Start(ctx, pool)
	}

	// ---- HTTP ----
	srv := apiv1.NewServer(dispatcher, proc, cfg.Orchestrator.RetryAfterSec, logger)
	r := chi.NewRouter()
	r.Use(api.Recover(logger), api.TraceID(logger), api.RequestLog(logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(
			api.Timeout(cfg.Orchestrator.MaxSyncWait()+5*time.Second),
			api.Auth([]byte(cfg.Server.AuthSecret), cfg.Runtime.Dev, logger),
		)
		srv.RegisterRoutes(r)
	})

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
