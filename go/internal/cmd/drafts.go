package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
)

type DraftSummary struct {
	DraftID    uuid.UUID `json:"draft_id"`
	Name       string    `json:"name,omitempty"`
	Teams      int       `json:"teams"`
	Configured bool      `json:"configured"`
	Logged     bool      `json:"logged"`
	Phase      string    `json:"phase,omitempty"`
}

func newDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List configured drafts and drafts found in the action log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrafts(cmd, rootOpts)
		},
	}
}

func runDrafts(cmd *cobra.Command, opts *RootOptions) error {
	ctx := cmd.Context()

	registry, err := config.LoadDrafts(opts.DraftsFile)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer b.Close()

	logged, err := b.Drafts(ctx)
	if err != nil {
		return err
	}

	var summaries []DraftSummary
	for _, id := range registry.Drafts() {
		league, _ := registry.League(id)
		summaries = append(summaries, DraftSummary{
			DraftID:    id,
			Name:       league.Name,
			Teams:      len(league.Teams),
			Configured: true,
			Logged:     slices.Contains(logged, id),
		})
	}
	for _, id := range logged {
		if _, ok := registry.League(id); !ok {
			summaries = append(summaries, DraftSummary{DraftID: id, Logged: true})
		}
	}

	for i := range summaries {
		s, err := b.Snapshots.Get(ctx, summaries[i].DraftID)
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
		case err != nil:
			return fmt.Errorf("failed to read snapshot: %w", err)
		default:
			summaries[i].Phase = string(s.Phase)
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, summaries)
	}
	tw := newTable(out, "DRAFT", "NAME", "TEAMS", "CONFIGURED", "LOGGED", "PHASE")
	for _, d := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%t\t%s\n", d.DraftID, d.Name, d.Teams, d.Configured, d.Logged, d.Phase)
	}
	return tw.Flush()
}
