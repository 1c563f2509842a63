package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/quillmarket/fines-backend/api/routes"
	"github.com/quillmarket/fines-backend/internal/appeals"
	"github.com/quillmarket/fines-backend/internal/compensation"
	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/internal/policies"
	"github.com/quillmarket/fines-backend/pkg/config"
	"github.com/quillmarket/fines-backend/pkg/db"
	"github.com/quillmarket/fines-backend/pkg/enums"
	"github.com/quillmarket/fines-backend/pkg/logger"
	"github.com/quillmarket/fines-backend/pkg/migrate"
	"github.com/quillmarket/fines-backend/pkg/outbox"
	"github.com/quillmarket/fines-backend/pkg/redis"
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
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	policiesService, err := policies.NewService(policies.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create policy service", err)
		os.Exit(1)
	}

	finesService, err := fines.NewService(
		fines.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		policiesService,
		compensation.NewLedger(),
		enums.Currency(cfg.Fines.DefaultCurrency),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fine service", err)
		os.Exit(1)
	}

	reviewRoles, err := cfg.Fines.ReviewRoleSet()
	if err != nil {
		logg.Error(context.Background(), "failed to parse review roles", err)
		os.Exit(1)
	}
	appealsService, err := appeals.NewService(
		appeals.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		finesService,
		reviewRoles,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create appeal service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, finesService, appealsService, policiesService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
