package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/event-pos/internal/catalog/application"
	cataloggrpc "github.com/dmehra2102/event-pos/internal/catalog/infrastructure/grpc"
	catalogpg "github.com/dmehra2102/event-pos/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/event-pos/pkg/config"
	"github.com/dmehra2102/event-pos/pkg/logging"
	"github.com/dmehra2102/event-pos/pkg/shutdown"
	"github.com/dmehra2102/event-pos/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("error").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "catalog-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := catalogpg.NewRepository(log, pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("catalog migration failed", "err", err)
		os.Exit(1)
	}
	if cfg.CatalogSeedFile != "" {
		if err := repo.SeedFile(ctx, cfg.CatalogSeedFile); err != nil {
			log.Error("catalog seed failed", "err", err)
			os.Exit(1)
		}
	}

	gs, err := cataloggrpc.Run(cfg.CatalogListenAddr, cataloggrpc.NewServer(log, application.NewService(log, repo)))
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	log.Info("catalog grpc listening", "addr", cfg.CatalogListenAddr)

	<-ctx.Done()

	gs.GracefulStop()
	if err := shutdown.Drain(5*time.Second, tp.Shutdown); err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	log.Info("catalog-service shutdown complete")
}
