// Package backend opens the action log and snapshot store a binary runs
// against: Postgres for multi-host deployments, SQLite for a single host.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/dbconfig"
	"github.com/mcdev12/auctiondraft/go/internal/draft/actionlog"
	draftdb "github.com/mcdev12/auctiondraft/go/internal/draft/db"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/draft/sqlitestore"
)

type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

type Config struct {
	Kind       Kind
	Postgres   dbconfig.Config
	Listener   actionlog.PostgresConfig
	SQLitePath string
	// PollInterval drives SQLite subscriptions.
	PollInterval time.Duration
}

// ConfigFromEnv reads STORE, SQLITE_PATH and the database variables.
func ConfigFromEnv() Config {
	kind := Kind(os.Getenv("STORE"))
	if kind == "" {
		kind = KindPostgres
	}
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "auctiondraft.db"
	}
	return Config{
		Kind:         kind,
		Postgres:     dbconfig.NewConfigFromEnv(),
		Listener:     actionlog.DefaultPostgresConfig(),
		SQLitePath:   path,
		PollInterval: sqlitestore.DefaultPollInterval,
	}
}

// Backend bundles the stores with their lifecycle.
type Backend struct {
	Kind      Kind
	Actions   actionlog.Log
	Snapshots snapshot.Store

	run    func(ctx context.Context) error
	drafts func(ctx context.Context) ([]uuid.UUID, error)
	close  []func() error
}

func Open(ctx context.Context, cfg Config) (*Backend, error) {
	switch cfg.Kind {
	case KindPostgres:
		return openPostgres(ctx, cfg)
	case KindSQLite:
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unknown store %q (want postgres or sqlite)", cfg.Kind)
	}
}

func openPostgres(ctx context.Context, cfg Config) (*Backend, error) {
	dsn := cfg.Postgres.DSN()

	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := draftdb.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	listener := cfg.Listener
	listener.DatabaseURL = dsn
	actions := actionlog.NewPostgresLog(pool, listener, nil)

	log.Info().
		Str("host", cfg.Postgres.Host).
		Str("database", cfg.Postgres.Database).
		Msg("connected to postgres")

	return &Backend{
		Kind:      KindPostgres,
		Actions:   actions,
		Snapshots: snapshot.NewPostgresStore(database),
		run:       actions.Run,
		drafts: func(ctx context.Context) ([]uuid.UUID, error) {
			return listDrafts(ctx, database)
		},
		close: []func() error{
			func() error { pool.Close(); return nil },
			database.Close,
		},
	}, nil
}

func openSQLite(cfg Config) (*Backend, error) {
	opts := []sqlitestore.Option{}
	if cfg.PollInterval > 0 {
		opts = append(opts, sqlitestore.WithPollInterval(cfg.PollInterval))
	}
	store, err := sqlitestore.Open(cfg.SQLitePath, opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")

	return &Backend{
		Kind:      KindSQLite,
		Actions:   store,
		Snapshots: store,
		drafts:    store.Drafts,
		close:     []func() error{store.Close},
	}, nil
}

// Run serves live action delivery until ctx is done. For SQLite it only
// waits, since subscriptions poll on their own.
func (b *Backend) Run(ctx context.Context) error {
	if b.run == nil {
		<-ctx.Done()
		return nil
	}
	return b.run(ctx)
}

// Drafts lists every draft with at least one logged action.
func (b *Backend) Drafts(ctx context.Context) ([]uuid.UUID, error) {
	return b.drafts(ctx)
}

func (b *Backend) Close() error {
	var errs []error
	for _, fn := range b.close {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func listDrafts(ctx context.Context, database *sql.DB) ([]uuid.UUID, error) {
	rows, err := database.QueryContext(ctx, `SELECT DISTINCT draft_id FROM draft_actions ORDER BY draft_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan draft id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
