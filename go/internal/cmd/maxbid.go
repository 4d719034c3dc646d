package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type maxBidOptions struct {
	*RootOptions
	Draft    string
	Team     string
	Position string
}

func newMaxBidCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &maxBidOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "max-bid",
		Short: "Quote the most a team can bid for a position",
		Example: `  draftctl max-bid --draft 6f0d... --team a --position RB
  draftctl max-bid --draft 6f0d... --team a --position WR --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaxBid(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Draft, "draft", "", "draft id (required)")
	cmd.Flags().StringVar(&opts.Team, "team", "", "team id (required)")
	cmd.Flags().StringVar(&opts.Position, "position", "", "player position (required)")
	_ = cmd.MarkFlagRequired("draft")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func runMaxBid(cmd *cobra.Command, opts *maxBidOptions) error {
	ctx := cmd.Context()

	draftID, league, err := loadLeague(opts.RootOptions, opts.Draft)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close()

	s, err := b.Snapshots.Get(ctx, draftID)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		s = models.NewSnapshot(draftID, league)
	case err != nil:
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	team, ok := s.Team(opts.Team)
	if !ok {
		return fmt.Errorf("%w: %s", resolver.ErrUnknownTeam, opts.Team)
	}
	quote := resolver.QuoteFor(league, team, opts.Position)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, quote)
	}
	fmt.Fprintf(out, "team %s, %s\n", quote.TeamID, quote.Position)
	fmt.Fprintf(out, "  remaining cash: $%d\n", quote.RemainingCash)
	fmt.Fprintf(out, "  open slots:     %d (reserve $%d)\n", quote.OpenSlots, quote.Reserve)
	fmt.Fprintf(out, "  max bid:        $%d\n", quote.MaxBid)
	if quote.Eligible {
		fmt.Fprintf(out, "  valid slots:    %s\n", strings.Join(quote.ValidSlots, ", "))
	} else {
		fmt.Fprintln(out, "  valid slots:    none")
	}
	return nil
}
