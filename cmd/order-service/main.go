package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/config"
	"github.com/vasiliy-maslov/storefront-orders/internal/db"
	"github.com/vasiliy-maslov/storefront-orders/internal/fallback"
	"github.com/vasiliy-maslov/storefront-orders/internal/notify"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/settings"
	"github.com/vasiliy-maslov/storefront-orders/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	database, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	settingsSvc := settings.Static(settings.ShippingDefaults{
		Cost:        cfg.Settings.ShippingCost,
		CompanyName: cfg.Settings.ShippingCompanyName,
	})
	if cfg.Settings.DSN != "" {
		settingsSvc, err = settings.New(cfg.Settings.DSN, settings.ShippingDefaults{
			Cost:        cfg.Settings.ShippingCost,
			CompanyName: cfg.Settings.ShippingCompanyName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to settings store")
		}
	}

	notifier := notify.Nop()
	if cfg.Redis.Addr != "" {
		notifier = notify.NewRedisNotifier(cfg.Redis.Addr)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Notifications enabled via Redis")
	}

	var fallbackStore order.FallbackStore
	if cfg.Fallback.Path != "" {
		store, err := fallback.Open(cfg.Fallback.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open fallback order store")
		}
		defer store.Close()
		fallbackStore = store
	}

	router := transport.NewRouter(database.Pool, settingsSvc, notifier, fallbackStore)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
