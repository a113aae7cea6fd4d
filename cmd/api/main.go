package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/healthprofile/internal/api"
	"example.com/healthprofile/internal/auth"
	"example.com/healthprofile/internal/config"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/observability"
	"example.com/healthprofile/internal/outbox"
	"example.com/healthprofile/internal/persistence/postgres"
	"example.com/healthprofile/internal/persistence/sqlite"
	httptransport "example.com/healthprofile/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, "healthprofile-api", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	}

	var (
		store      domain.HealthStore
		dispatcher *outbox.Dispatcher
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalf("failed to migrate postgres: %v", err)
		}
		store = postgres.NewRepository(pool)

		if cfg.OutboxEnabled() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry,
				outbox.WithPollInterval(cfg.OutboxPollInterval),
				outbox.WithBatchSize(cfg.OutboxBatchSize),
			)
			go dispatcher.Start(ctx)
		} else {
			log.Printf("outbox dispatcher disabled: KAFKA_BROKERS or SCHEMA_REGISTRY_URL not set")
		}
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		defer s.Close()
		store = s
	case config.DriverNone:
		log.Printf("no health store configured; data routes will answer 503")
	}

	handler := api.NewHandler(store, api.WithLocale(cfg.DisplayLocale))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var metricsSrv *http.Server
	if cfg.MetricsAddress == "" {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
		go func() {
			log.Printf("metrics listening on %s", cfg.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		authMiddleware.Wrap,
		httptransport.RequestLogger(log.New(log.Writer(), "[http] ", log.LstdFlags)),
		httptransport.CORS(cfg.CORSAllowedOrigin),
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("healthprofile-api listening on %s (store=%s)", cfg.HTTPAddress, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown error: %v", err)
		}
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}
