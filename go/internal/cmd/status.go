package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/draft/timing"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type statusOptions struct {
	*RootOptions
	Draft      string
	StaleAfter time.Duration
	clock      clockwork.Clock
}

type TeamStatus struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	Spent     int    `json:"spent"`
	Remaining int    `json:"remaining"`
	OpenSlots int    `json:"open_slots"`
	MaxBid    int    `json:"max_bid"`
	Players   int    `json:"players"`
}

type StatusResult struct {
	DraftID      string       `json:"draft_id"`
	Phase        string       `json:"phase"`
	HostID       string       `json:"host_id,omitempty"`
	HeartbeatAt  time.Time    `json:"heartbeat_at"`
	Stale        bool         `json:"stale"`
	LastActionAt time.Time    `json:"last_action_at"`
	Nominator    string       `json:"nominator,omitempty"`
	Player       string       `json:"player,omitempty"`
	CurrentBid   int          `json:"current_bid,omitempty"`
	HighBidder   string       `json:"high_bidder,omitempty"`
	SecondsLeft  int          `json:"seconds_left,omitempty"`
	Teams        []TeamStatus `json:"teams"`
}

func newStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &statusOptions{RootOptions: rootOpts, clock: clockwork.NewRealClock()}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a draft's stored snapshot and coordinator liveness",
		Long: `Show the stored snapshot of a draft. Exits 1 when the coordinator's
heartbeat is older than --stale-after.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Draft, "draft", "", "draft id (required)")
	_ = cmd.MarkFlagRequired("draft")
	cmd.Flags().DurationVar(&opts.StaleAfter, "stale-after", 10*time.Second, "heartbeat age that counts as stale")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *statusOptions) error {
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
	if errors.Is(err, snapshot.ErrNotFound) {
		return &mismatchError{msg: fmt.Sprintf("no snapshot stored for draft %s", draftID)}
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	result := buildStatus(league, s, opts.clock.Now(), opts.StaleAfter)
	if err := printStatus(cmd, opts.Format, result); err != nil {
		return err
	}
	if result.Stale {
		return &mismatchError{msg: "coordinator heartbeat is stale"}
	}
	return nil
}

func buildStatus(league models.LeagueConfig, s models.Snapshot, now time.Time, staleAfter time.Duration) StatusResult {
	r := StatusResult{
		DraftID:      s.DraftID.String(),
		Phase:        string(s.Phase),
		HostID:       s.Engine.HostID,
		HeartbeatAt:  s.Engine.HeartbeatAt,
		Stale:        s.IsStale(now, staleAfter),
		LastActionAt: s.Engine.LastActionAt,
		Nominator:    s.Order.CurrentNominatorTeamID,
	}
	if s.Auction.Active() {
		r.Player = s.Auction.Player.Name
		r.CurrentBid = s.Auction.CurrentBid
		r.HighBidder = s.Auction.HighBidderTeamID
		r.SecondsLeft = timing.SecondsLeft(s.Auction.EndsAt, now)
	}
	for _, t := range s.Teams {
		r.Teams = append(r.Teams, TeamStatus{
			TeamID:    t.TeamID,
			Name:      t.Name,
			Spent:     t.Spent,
			Remaining: resolver.RemainingCash(t),
			OpenSlots: resolver.OpenSlots(league, t),
			MaxBid:    resolver.MaxBid(league, t),
			Players:   len(t.Roster),
		})
	}
	return r
}

func printStatus(cmd *cobra.Command, format string, r StatusResult) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, r)
	}

	liveness := "live"
	if r.Stale {
		liveness = "STALE"
	}
	fmt.Fprintf(out, "draft %s  phase=%s  host=%s  heartbeat=%s (%s)\n",
		r.DraftID, r.Phase, r.HostID, r.HeartbeatAt.Format(time.RFC3339), liveness)
	if r.Player != "" {
		fmt.Fprintf(out, "on the block: %s  $%d by %s  %ds left\n", r.Player, r.CurrentBid, r.HighBidder, r.SecondsLeft)
	} else if r.Nominator != "" {
		fmt.Fprintf(out, "nominating: %s\n", r.Nominator)
	}

	tw := newTable(out, "TEAM", "SPENT", "LEFT", "OPEN", "MAX BID", "PLAYERS")
	for _, t := range r.Teams {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", t.TeamID, t.Spent, t.Remaining, t.OpenSlots, t.MaxBid, t.Players)
	}
	return tw.Flush()
}
