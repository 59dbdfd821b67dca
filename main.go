package main

import (
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/app"
	"bookstore/pkg/config"
	"bookstore/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logr := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	logr.Info().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Msg("starting")

	application, err := app.New(cfg, logr)
	if err != nil {
		logr.Fatal().Err(err).Msg("failed to initialize application")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := application.Listen(); err != nil {
			logr.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-quit
	logr.Info().Msg("shutting down server")

	if err := application.Shutdown(); err != nil {
		logr.Error().Err(err).Msg("error during shutdown")
	}
	logr.Info().Msg("server gracefully stopped")
}
