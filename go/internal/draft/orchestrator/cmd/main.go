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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/backend"
	"github.com/mcdev12/auctiondraft/go/internal/draft/bidclock"
	"github.com/mcdev12/auctiondraft/go/internal/draft/broadcast"
	"github.com/mcdev12/auctiondraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// bus is both ends of snapshot broadcast.
type bus interface {
	broadcast.Publisher
	broadcast.Subscriber
}

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

	draftsFile := config.GetEnv("DRAFTS_FILE", "configs/drafts.yaml")
	natsURL := config.GetEnv("NATS_URL", "")
	healthPort := config.GetEnv("HEALTH_PORT", "8082")
	instanceID := config.GetEnv("HOST_ID", uuid.New().String()[:8])
	autoSettle := config.GetEnv("AUTO_SETTLE", "true") == "true"

	cfg := orchestrator.DefaultConfig()
	cfg.HeartbeatInterval = config.GetEnvAsDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.ReorderWindow = config.GetEnvAsDuration("REORDER_WINDOW", cfg.ReorderWindow)
	cfg.MaxSeen = config.GetEnvAsInt("MAX_SEEN", cfg.MaxSeen)
	staleAfter := config.GetEnvAsDuration("STALE_AFTER", 5*cfg.HeartbeatInterval)

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

	snapshots, closeBus, err := setupBus(ctx, natsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up snapshot broadcast")
	}
	defer closeBus()

	log.Info().
		Str("instance", instanceID).
		Str("store", string(store.Kind)).
		Str("nats_url", natsURL).
		Int("drafts", len(registry.Drafts())).
		Dur("heartbeat", cfg.HeartbeatInterval).
		Msg("starting draft orchestrator")

	pool := orchestrator.NewPool(instanceID)
	for _, draftID := range registry.Drafts() {
		league, _ := registry.League(draftID)
		pool.Add(orchestrator.New(draftID, league, store.Actions, store.Snapshots, snapshots, cfg,
			orchestrator.WithHostID(instanceID)))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Run(ctx) })
	g.Go(func() error { return pool.Run(ctx) })

	if autoSettle {
		for _, draftID := range registry.Drafts() {
			league, _ := registry.League(draftID)
			settler := newSettler(ctx, store, league, instanceID)
			if err := snapshots.Subscribe(ctx, draftID, broadcast.Latest(settler.Reconcile)); err != nil {
				log.Fatal().Err(err).Str("draft_id", draftID.String()).Msg("failed to subscribe settler")
			}
			g.Go(func() error { return settler.Run(ctx) })
		}
	}

	server := setupHealthServer(healthPort, pool, staleAfter)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("orchestrator stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("draft orchestrator shutdown complete")
}

func setupBus(ctx context.Context, natsURL string) (bus, func(), error) {
	if natsURL == "" {
		log.Warn().Msg("NATS_URL not set, snapshots are only broadcast in-process")
		return broadcast.NewLocal(), func() {}, nil
	}
	jsCfg := broadcast.DefaultJetStreamConfig()
	jsCfg.URL = natsURL
	js, err := broadcast.NewJetStream(ctx, jsCfg)
	if err != nil {
		return nil, nil, err
	}
	return js, func() { js.Close() }, nil
}

// newSettler builds the server-side bid clock that requests a settle once an
// auction deadline passes, so a sale happens even with no client connected.
func newSettler(ctx context.Context, store *backend.Backend, league models.LeagueConfig, instanceID string) *bidclock.Controller {
	return bidclock.New(league, bidclock.DefaultConfig(), nil, func(a models.Action) {
		stored, err := store.Actions.Append(ctx, a)
		if err != nil {
			log.Error().Err(err).Str("draft_id", a.DraftID.String()).Msg("failed to append settle")
			return
		}
		log.Info().
			Str("draft_id", stored.DraftID.String()).
			Str("action_id", stored.ActionID.String()).
			Msg("settle requested")
	}, bidclock.WithClock(clockwork.NewRealClock()), bidclock.WithUserID("system:"+instanceID))
}

func setupHealthServer(port string, pool *orchestrator.Pool, staleAfter time.Duration) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", orchestrator.HealthHandler(pool, clockwork.NewRealClock(), staleAfter))
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}
