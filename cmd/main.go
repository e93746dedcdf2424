package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/app"
	"github.com/YashMayekar/Resizer/internal/config"
)

const file = "config.json"

func initSentry(cfg *config.SentryConfig, version string) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
	})
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.NewConfig()
	if err := cfg.Read(file); err != nil {
		if !os.IsNotExist(err) {
			log.Fatal().Err(err).Msg("could not read config")
		}
		log.Warn().Str("file", file).Msg("no config file, using defaults")
	}

	if err := initSentry(&cfg.Sentry, "v1"); err != nil {
		log.Fatal().Err(err).Msg("sentry init failed")
	}
	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build app")
	}

	go func() {
		if err := a.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	cancel()
}
