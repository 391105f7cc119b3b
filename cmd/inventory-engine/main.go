package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orderflow/inventory-engine/internal/config"
	"github.com/orderflow/inventory-engine/internal/database"
	"github.com/orderflow/inventory-engine/internal/engine"
	enginekafka "github.com/orderflow/inventory-engine/internal/engine/kafka"
	invapp "github.com/orderflow/inventory-engine/internal/inventory/application"
	invpg "github.com/orderflow/inventory-engine/internal/inventory/infrastructure/postgres"
	orderapp "github.com/orderflow/inventory-engine/internal/order/application"
	orderpg "github.com/orderflow/inventory-engine/internal/order/infrastructure/postgres"
	transporthttp "github.com/orderflow/inventory-engine/internal/transport/http"
	"github.com/orderflow/inventory-engine/pkg/cache"
	"github.com/orderflow/inventory-engine/pkg/logging"
	"github.com/orderflow/inventory-engine/pkg/shutdown"
	"github.com/orderflow/inventory-engine/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "inventory-engine", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres
	pool, err := database.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	// Redis cache. The engine stays correct without it, so a failed
	// connection downgrades to a warning and a no-op client.
	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn("redis unavailable, running without cache acceleration", "err", err)
	}
	defer func() { _ = rdb.Close() }()
	productCache := cache.New(log, rdb, cfg.CacheTTL)

	// Kafka publisher
	publisher := enginekafka.NewPublisher(log, cfg.KafkaBrokers, cfg.StockTopic, cfg.OrderTopic)
	defer func() { _ = publisher.Close() }()

	// Services
	productRepo := invpg.NewRepository(log, pool)
	catalogSvc := invapp.NewService(log, productRepo, productCache)

	orderRepo := orderpg.NewRepository(log, pool, productRepo.Ledger())
	orderSvc := orderapp.NewService(log, orderRepo)

	eng := engine.New(log, orderSvc, catalogSvc, publisher, productCache)

	// Low stock sweep
	sweep := engine.NewSweep(log, catalogSvc, publisher, cfg.SweepInterval)
	go func() {
		if err := sweep.Run(ctx); err != nil {
			log.Error("sweep stopped with error", "err", err)
		}
	}()

	// HTTP server
	handler := transporthttp.NewHandler(log, eng)
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	eng.Wait()
	log.Info("inventory-engine shutdown complete")
}
