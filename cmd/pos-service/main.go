package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	catalogapp "github.com/dmehra2102/event-pos/internal/catalog/application"
	cataloggrpc "github.com/dmehra2102/event-pos/internal/catalog/infrastructure/grpc"
	catalogpg "github.com/dmehra2102/event-pos/internal/catalog/infrastructure/postgres"
	kitchenapp "github.com/dmehra2102/event-pos/internal/kitchen/application"
	kitchenhttp "github.com/dmehra2102/event-pos/internal/kitchen/infrastructure/http"
	"github.com/dmehra2102/event-pos/internal/notify"
	orderapp "github.com/dmehra2102/event-pos/internal/order/application"
	orderhttp "github.com/dmehra2102/event-pos/internal/order/infrastructure/http"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymenthttp "github.com/dmehra2102/event-pos/internal/payment/infrastructure/http"
	pixapp "github.com/dmehra2102/event-pos/internal/pix/application"
	pixhttp "github.com/dmehra2102/event-pos/internal/pix/infrastructure/http"
	pixkafka "github.com/dmehra2102/event-pos/internal/pix/infrastructure/kafka"
	"github.com/dmehra2102/event-pos/internal/pix/infrastructure/psp"
	"github.com/dmehra2102/event-pos/internal/store/postgres"
	"github.com/dmehra2102/event-pos/internal/worker"
	"github.com/dmehra2102/event-pos/pkg/config"
	"github.com/dmehra2102/event-pos/pkg/httpx"
	"github.com/dmehra2102/event-pos/pkg/idempotency"
	"github.com/dmehra2102/event-pos/pkg/logging"
	"github.com/dmehra2102/event-pos/pkg/outbox"
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

	tp, err := tracing.Init(ctx, "pos-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	st := postgres.NewStore(log, pool)

	// Catalog: remote when an address is configured, in-process otherwise.
	var cat orderapp.Catalog
	if cfg.CatalogGRPCAddr != "" {
		client, err := cataloggrpc.NewClient(log, cfg.CatalogGRPCAddr)
		if err != nil {
			log.Error("catalog client failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		cat = client
	} else {
		repo := catalogpg.NewRepository(log, pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Error("catalog migration failed", "err", err)
			os.Exit(1)
		}
		cat = catalogapp.NewService(log, repo)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	// Outbox relay for notifications
	brokers := strings.Split(cfg.KafkaAddr, ",")
	writer := notify.NewWriter(brokers)
	dispatch := outbox.NewDispatcher(log, writer, cfg.NotifyTopic)
	relay := outbox.NewRelay(log, postgres.NewOutboxStore(log, pool), dispatch, "pos-service-relay")

	var provider pixapp.PSP
	if cfg.PSP.BaseURL != "" {
		provider = psp.NewClient(log, cfg.PSP.Name, cfg.PSP.BaseURL, cfg.PSP.Token, cfg.PSP.Timeout)
	} else {
		log.Warn("no psp configured, instant charges are simulated")
	}

	gateway := notify.NewGateway(log, st)
	charges := pixapp.NewChargeService(log, st, cat, provider, pixapp.Merchant{
		PayeeKey: cfg.PSP.PayeeKey,
		Name:     cfg.MerchantName,
		City:     cfg.MerchantCity,
	}, cfg.PixExpiration)
	reconciler := pixapp.NewReconciler(log, st, gateway, cfg.WebhookMaxAttempts)
	processors := paymentapp.NewProcessors(paymentapp.NewCardProcessor(cfg.CardApprovalRate, nil), charges)

	orders := orderapp.NewService(log, st, cat, gateway)
	payments := paymentapp.NewService(log, st, cat, gateway, processors)
	kitchen := kitchenapp.NewService(log, st, cat, gateway)

	pixHandler := pixhttp.NewHandler(log, charges, reconciler, cfg.WebhookSecret)

	// HTTP server
	r := chi.NewRouter()
	r.Use(httpx.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowedHeaders: []string{"Authorization", "Content-Type", idempotency.HeaderKey},
		MaxAge:         300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Mount("/webhooks", pixHandler.WebhookRoutes())
	r.Group(func(r chi.Router) {
		r.Use(httpx.Authenticate(cfg.JWTSecret))
		r.Mount("/orders", orderhttp.NewHandler(log, orders).Routes())
		r.Mount("/payments", paymenthttp.NewHandler(log, payments, idem).Routes())
		r.Mount("/pix", pixHandler.Routes())
		r.Mount("/kitchen", kitchenhttp.NewHandler(log, kitchen).Routes())
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Run relay
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Replay unprocessed webhooks
	replay := worker.NewWebhookReplay(log, reconciler, cfg.WebhookReplayInterval)
	go func() {
		if err := replay.Run(ctx); err != nil {
			log.Error("webhook replay stopped", "err", err)
		}
	}()

	// Webhooks relayed through Kafka
	consumer := pixkafka.NewConsumer(log, brokers, cfg.WebhookTopic, "pos-service", reconciler, idem)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("webhook consumer stopped", "err", err)
			cancel()
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	err = shutdown.Drain(10*time.Second,
		srv.Shutdown,
		func(context.Context) error { return writer.Close() },
		tp.Shutdown,
	)
	if err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	log.Info("pos-service shutdown complete")
}
