package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/backend"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func openBackend(ctx context.Context, opts *RootOptions) (*backend.Backend, error) {
	cfg := backend.ConfigFromEnv()
	cfg.Kind = backend.Kind(opts.Store)
	cfg.SQLitePath = opts.SQLitePath
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return b, nil
}

// loadLeague resolves a --draft flag against the drafts file.
func loadLeague(opts *RootOptions, draft string) (uuid.UUID, models.LeagueConfig, error) {
	registry, err := config.LoadDrafts(opts.DraftsFile)
	if err != nil {
		return uuid.Nil, models.LeagueConfig{}, err
	}
	draftID, err := uuid.Parse(draft)
	if err != nil {
		return uuid.Nil, models.LeagueConfig{}, fmt.Errorf("invalid draft id %q: %w", draft, err)
	}
	league, ok := registry.League(draftID)
	if !ok {
		return uuid.Nil, models.LeagueConfig{}, fmt.Errorf("draft %s is not in %s", draftID, opts.DraftsFile)
	}
	return draftID, league, nil
}
