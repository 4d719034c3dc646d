package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/backend"
	"github.com/mcdev12/auctiondraft/go/internal/draft/broadcast"
	"github.com/mcdev12/auctiondraft/go/internal/draft/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := config.GetEnv("GATEWAY_PORT", "8081")
	natsURL := config.GetEnv("NATS_URL", "")
	draftsFile := config.GetEnv("DRAFTS_FILE", "configs/drafts.yaml")

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.StaleAfter = config.GetEnvAsDuration("STALE_AFTER", gatewayConfig.StaleAfter)

	registry, err := config.LoadDrafts(draftsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", draftsFile).Msg("failed to load drafts")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := backend.Open(ctx, backend.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	var subscriber broadcast.Subscriber
	if natsURL != "" {
		jsCfg := broadcast.DefaultJetStreamConfig()
		jsCfg.URL = natsURL
		js, err := broadcast.NewJetStream(ctx, jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to snapshot stream")
		}
		defer js.Close()
		subscriber = js
	} else {
		interval := config.GetEnvAsDuration("SNAPSHOT_POLL_INTERVAL", time.Second)
		log.Warn().Dur("interval", interval).Msg("NATS_URL not set, polling the snapshot store")
		subscriber = broadcast.NewStorePoller(store.Snapshots, interval, nil)
	}

	log.Info().
		Str("store", string(store.Kind)).
		Str("nats_url", natsURL).
		Str("port", port).
		Int("drafts", len(registry.Drafts())).
		Msg("starting draft gateway")

	svc := gateway.NewService(gatewayConfig, store.Actions, store.Snapshots, registry, subscriber)
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start gateway service")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     h2c.NewHandler(svc.Handler(), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("gateway stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("draft gateway shutdown complete")
}
