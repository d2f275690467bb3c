package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jackvaisey/user-service/api/controllers"
	"github.com/jackvaisey/user-service/api/routes"
	"github.com/jackvaisey/user-service/internal/users"
	"github.com/jackvaisey/user-service/internal/wallet"
	"github.com/jackvaisey/user-service/pkg/auth"
	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/db"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/migrate"
	"github.com/jackvaisey/user-service/pkg/outbox"
	"github.com/jackvaisey/user-service/pkg/rabbitmq"
	"github.com/jackvaisey/user-service/pkg/redis"
	"github.com/jackvaisey/user-service/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	authClient, err := auth.NewClient(cfg.Auth)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth client", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Records: users.NewRepository(dbClient),
		Hasher:  security.NewHasher(),
		Auth:    authClient,
		Events:  outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	balanceCache, err := wallet.NewBalanceCache(redisClient, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance cache", err)
		os.Exit(1)
	}
	requester, err := wallet.NewRequester(broker, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance requester", err)
		os.Exit(1)
	}
	walletService, err := wallet.NewService(balanceCache, requester, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	router := routes.New(controllers.NewUsers(usersService, walletService, logg), logg)
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "error shutting down api server", err)
	}
	logg.Info(context.Background(), "api server shutting down gracefully")
}
