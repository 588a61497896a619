package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainpay-reconciler/config"
	"chainpay-reconciler/internal/adapter/events"
	"chainpay-reconciler/internal/adapter/http/dto"
	httpHandler "chainpay-reconciler/internal/adapter/http/handler"
	"chainpay-reconciler/internal/adapter/ledger"
	"chainpay-reconciler/internal/adapter/secrets"
	"chainpay-reconciler/internal/adapter/signer"
	"chainpay-reconciler/internal/adapter/storage/badgerstore"
	pgStorage "chainpay-reconciler/internal/adapter/storage/postgres"
	redisStorage "chainpay-reconciler/internal/adapter/storage/redis"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/internal/service"
	"chainpay-reconciler/pkg/logger"
	"chainpay-reconciler/pkg/metrics"
	promMetrics "chainpay-reconciler/pkg/metrics/prometheus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: ./config.yaml or ./config/config.yaml)")
	issueToken := flag.String("issue-token", "", "Print a bearer token for this owner address and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token printed by -issue-token")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Secrets overlay
	if cfg.Vault.Enabled {
		loader, err := secrets.NewVaultLoader(cfg.Vault, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Vault client")
		}
		if err := loader.Apply(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
		}
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if *issueToken != "" {
		if !dto.IsAddress(*issueToken) {
			log.Fatal().Str("owner", *issueToken).Msg("-issue-token needs a bech32 account address")
		}
		token, expiresAt, err := tokenSvc.Generate(*issueToken, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		log.Info().Str("owner", *issueToken).Time("expires_at", expiresAt).Msg("Token issued")
		return
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting chainpay reconciler")

	// Metrics
	var collector metrics.Collector = metrics.NoOpCollector{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pc := promMetrics.NewPrometheusCollector(cfg.Metrics.Namespace)
		if err := pc.Register(reg); err != nil {
			log.Fatal().Err(err).Msg("Failed to register metrics")
		}
		collector = pc
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// Transaction store
	var healthCheckers []ports.HealthChecker
	var store ports.TransactionStore
	switch cfg.Store.Driver {
	case config.StoreDriverBadger:
		db, err := badgerstore.Open(cfg.Store.BadgerPath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open Badger store")
		}
		defer db.Close()
		store = badgerstore.NewTransactionStore(db)
		healthCheckers = append(healthCheckers, badgerstore.NewHealthCheck(db))
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		store = pgStorage.NewTransactionStore(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL connected")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	log.Info().Msg("Redis connected")

	reconcileLock := redisStorage.NewReconcileLock(rdb)
	balanceCache := redisStorage.NewBalanceCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Ledger client: plain REST client wrapped with breaker, timeout and metrics.
	restClient := ledger.NewClient(cfg.Ledger.RESTURL, &http.Client{Timeout: cfg.Ledger.Timeout}, log)
	ledgerClient := ledger.NewResilientClient(restClient, cfg.Ledger, collector, log)
	healthCheckers = append(healthCheckers, ledgerClient)

	// Signing delegate
	var delegate ports.SigningDelegate = signer.Disconnected{}
	if cfg.Signer.URL != "" {
		delegate = signer.NewHTTPDelegate(cfg.Signer.URL, cfg.Signer.APIKey, &http.Client{Timeout: cfg.Signer.Timeout}, log)
	} else {
		log.Warn().Msg("signer.url not set, transfers will report wallet not connected")
	}

	// Status change events
	var publisher ports.EventPublisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		publisher = events.NewPublisher(nc, cfg.NATS.Subject)
	}

	// Services
	reconcileSvc := service.NewReconcileService(store, ledgerClient, reconcileLock, publisher, collector, service.ReconcileOptions{
		Concurrency:   cfg.Reconcile.Concurrency,
		LookupTimeout: cfg.Reconcile.LookupTimeout,
		LockTTL:       cfg.Reconcile.LockTTL,
		StaleAfter:    cfg.Reconcile.StaleAfter,
	}, logger.Component(log, "reconcile"))
	transferSvc := service.NewTransferService(ledgerClient, delegate, store, balanceCache, collector, logger.Component(log, "transfer"))
	ledgerSvc := service.NewLedgerService(ledgerClient, balanceCache, cfg.Ledger.BalanceCacheTTL, log)
	querySvc := service.NewTransactionQueryService(store)

	worker := service.NewReconcileWorker(reconcileSvc, cfg.Reconcile.Interval, logger.Component(log, "reconcile_worker"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		ReconcileSvc:   reconcileSvc,
		QuerySvc:       querySvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		MetricsHandler: metricsHandler,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	waitWorker(shutdownCtx, workerDone, log)

	log.Info().Msg("Server exited")
}

// waitWorker gives an in-flight reconcile pass time to finish its writes.
func waitWorker(ctx context.Context, done <-chan struct{}, log zerolog.Logger) {
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Reconcile worker did not stop before shutdown deadline")
	}
}
