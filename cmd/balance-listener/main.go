package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jackvaisey/user-service/internal/wallet"
	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/metrics"
	"github.com/jackvaisey/user-service/pkg/rabbitmq"
	"github.com/jackvaisey/user-service/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "balance-listener"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "balance-listener",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis client", err)
		}
	}()

	broker, err := rabbitmq.New(context.Background(), cfg.RabbitMQ, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap rabbitmq", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logg.Error(context.Background(), "error closing rabbitmq client", err)
		}
	}()

	if err := broker.DeclareTopology(context.Background(), cfg.Wallet); err != nil {
		logg.Error(context.Background(), "failed to declare broker topology", err)
		os.Exit(1)
	}

	cache, err := wallet.NewBalanceCache(redisClient, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance cache", err)
		os.Exit(1)
	}

	listener, err := wallet.NewListener(broker, cache, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance listener", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	listener = listener.WithMetrics(metrics.NewListenerMetrics(promRegistry))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	opsServer := startOpsServer(ctx, cfg.App.MetricsPort, promRegistry, logg)
	defer shutdownOpsServer(opsServer, logg)

	logg.Info(ctx, "starting balance listener")
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "balance listener stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "balance listener shutting down gracefully")
}

func startOpsServer(ctx context.Context, port string, registry *prometheus.Registry, logg *logger.Logger) *http.Server {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
		}
	}()
	return server
}

func shutdownOpsServer(server *http.Server, logg *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Error(ctx, "error shutting down ops server", err)
	}
}
