package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/broadcast"
	"github.com/mcdev12/auctiondraft/go/internal/draft/gateway"
	"github.com/mcdev12/auctiondraft/go/internal/draft/orchestrator"
)

type serveOptions struct {
	*RootOptions
	Port string
}

func newServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run coordinators and the gateway in one process",
		Long: `Run a coordinator for every configured draft and the client gateway in a
single process, with snapshots broadcast in memory. Meant for one host,
usually with --store sqlite.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Port, "port", config.GetEnv("PORT", "8080"), "HTTP port")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := config.LoadDrafts(opts.DraftsFile)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close()

	bus := broadcast.NewLocal()
	cfg := orchestrator.DefaultConfig()
	pool := orchestrator.NewPool("draftctl")
	for _, draftID := range registry.Drafts() {
		league, _ := registry.League(draftID)
		pool.Add(orchestrator.New(draftID, league, b.Actions, b.Snapshots, bus, cfg))
	}

	svc := gateway.NewService(gateway.DefaultConfig(), b.Actions, b.Snapshots, registry, bus)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	server := setupServer(opts.Port, svc, pool)

	log.Info().
		Str("addr", server.Addr).
		Str("store", string(b.Kind)).
		Int("drafts", len(registry.Drafts())).
		Msg("serving drafts")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// setupServer mounts the gateway routes plus coordinator health, served
// over h2c.
func setupServer(port string, svc *gateway.Service, pool *orchestrator.Pool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", svc.Handler())
	mux.HandleFunc("GET /coordinator/health", orchestrator.HealthHandler(pool, clockwork.NewRealClock(), 5*orchestrator.DefaultConfig().HeartbeatInterval))

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}
