package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/technotronz/portal-api/internal/api"
	"github.com/technotronz/portal-api/internal/core/ports"
	"github.com/technotronz/portal-api/internal/infrastructure/config"
	mongodb "github.com/technotronz/portal-api/internal/infrastructure/db/mongo"
	redisdb "github.com/technotronz/portal-api/internal/infrastructure/db/redis"
	"github.com/technotronz/portal-api/internal/platform/mailer"
	"github.com/technotronz/portal-api/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	if err := mongodb.NewUserRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("user index creation failed")
	}
	if err := mongodb.NewPaymentRepository(db).EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("payment index creation failed")
	}

	e := api.NewRouter(cfg, db, rdb, buildMailer(cfg))

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting portal api")
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func buildMailer(cfg *config.Config) ports.Mailer {
	if cfg.Mail.Driver == "mailersend" && cfg.Mail.APIKey != "" {
		return mailer.NewMailerSend(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	}
	return mailer.NewDev(logger.Component("mailer"))
}
