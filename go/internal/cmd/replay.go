package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcdev12/auctiondraft/go/internal/draft/reducer"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type replayOptions struct {
	*RootOptions
	Draft string
	Write bool
}

// ReplayResult summarizes a rebuild of one draft from its action log.
type ReplayResult struct {
	DraftID       string    `json:"draft_id"`
	Actions       int       `json:"actions"`
	Applied       int       `json:"applied"`
	Rejected      int       `json:"rejected"`
	Phase         string    `json:"phase"`
	LastActionAt  time.Time `json:"last_action_at"`
	Deterministic bool      `json:"deterministic"`
	// StoredMatches is nil when no snapshot is stored.
	StoredMatches *bool `json:"stored_matches,omitempty"`
	// MissingFromStored lists actions the rebuild applied that the stored
	// snapshot never logged although its cursor had moved past them. Live
	// hosts drop such late arrivals, so a non-empty list means the log
	// surfaced actions out of created_at order.
	MissingFromStored []string `json:"missing_from_stored,omitempty"`
	Written           bool     `json:"written"`
}

func newReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &replayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a draft snapshot from its action log",
		Long: `Rebuild a draft from the action log, twice, and compare the result with
the stored snapshot.

Exit codes:
  0 - replay is deterministic and matches the stored snapshot
  1 - replay differs between runs or from the stored snapshot
  2 - command error

Examples:
  draftctl replay --draft 6f0d... --db ./auctiondraft.db
  draftctl replay --draft 6f0d... --write`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Draft, "draft", "", "draft id (required)")
	_ = cmd.MarkFlagRequired("draft")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "store the rebuilt snapshot")
	return cmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions) error {
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

	actions, err := b.Actions.ListSince(ctx, draftID, models.Cursor{})
	if err != nil {
		return fmt.Errorf("failed to read action log: %w", err)
	}

	initial := models.NewSnapshot(draftID, league)
	rebuilt := initial
	result := ReplayResult{DraftID: draftID.String(), Actions: len(actions)}
	for _, a := range actions {
		var out reducer.Outcome
		rebuilt, out = reducer.Apply(league, rebuilt, a)
		if out.Applied {
			result.Applied++
		} else {
			result.Rejected++
		}
	}
	result.Phase = string(rebuilt.Phase)
	result.LastActionAt = rebuilt.Engine.LastActionAt

	again := reducer.Replay(league, initial, actions)
	result.Deterministic, err = sameState(rebuilt, again)
	if err != nil {
		return err
	}

	stored, err := b.Snapshots.Get(ctx, draftID)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read stored snapshot: %w", err)
	default:
		same, err := sameState(rebuilt, stored)
		if err != nil {
			return err
		}
		result.StoredMatches = &same
		result.MissingFromStored = missingFromStored(rebuilt, stored)
	}

	if opts.Write {
		if err := b.Snapshots.Put(ctx, rebuilt); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		result.Written = true
	}

	if err := printReplay(cmd, opts.Format, result); err != nil {
		return err
	}
	if !result.Deterministic {
		return &mismatchError{msg: "replay is not deterministic"}
	}
	if len(result.MissingFromStored) > 0 && !opts.Write {
		return &mismatchError{msg: fmt.Sprintf("stored snapshot skipped %d actions behind its cursor", len(result.MissingFromStored))}
	}
	if result.StoredMatches != nil && !*result.StoredMatches && !opts.Write {
		return &mismatchError{msg: "stored snapshot differs from replay"}
	}
	return nil
}

func printReplay(cmd *cobra.Command, format string, r ReplayResult) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, r)
	}
	fmt.Fprintf(out, "draft %s: %d actions (%d applied, %d rejected)\n", r.DraftID, r.Actions, r.Applied, r.Rejected)
	fmt.Fprintf(out, "phase: %s\n", r.Phase)
	fmt.Fprintf(out, "deterministic: %t\n", r.Deterministic)
	switch {
	case r.StoredMatches == nil:
		fmt.Fprintln(out, "stored snapshot: none")
	case *r.StoredMatches:
		fmt.Fprintln(out, "stored snapshot: matches")
	default:
		fmt.Fprintln(out, "stored snapshot: DIFFERS")
	}
	if n := len(r.MissingFromStored); n > 0 {
		fmt.Fprintf(out, "applied in replay but missing from stored snapshot: %d\n", n)
		for _, id := range r.MissingFromStored {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}
	if r.Written {
		fmt.Fprintln(out, "snapshot written")
	}
	return nil
}

// missingFromStored returns the ids of actions rebuilt applied inside the
// window stored's audit log covers but that stored never logged. The window
// starts at the oldest retained entry since the log is bounded.
func missingFromStored(rebuilt, stored models.Snapshot) []string {
	var from models.Cursor
	if len(stored.Log) > 0 {
		from = models.Cursor{At: stored.Log[0].At, ActionID: stored.Log[0].ActionID}
	}
	upto := stored.Cursor()

	seen := make(map[uuid.UUID]struct{}, len(stored.Log))
	for _, e := range stored.Log {
		seen[e.ActionID] = struct{}{}
	}

	var missing []string
	for _, e := range rebuilt.Log {
		c := models.Cursor{At: e.At, ActionID: e.ActionID}
		if c.Before(from) || c.After(upto) {
			continue
		}
		if _, ok := seen[e.ActionID]; !ok {
			missing = append(missing, e.ActionID.String())
		}
	}
	return missing
}

// sameState compares two snapshots ignoring coordinator bookkeeping that a
// replay cannot reproduce.
func sameState(a, b models.Snapshot) (bool, error) {
	ja, err := json.Marshal(forCompare(a))
	if err != nil {
		return false, err
	}
	jb, err := json.Marshal(forCompare(b))
	if err != nil {
		return false, err
	}
	return bytes.Equal(ja, jb), nil
}

func forCompare(s models.Snapshot) models.Snapshot {
	s = s.Clone()
	s.Engine.HostID = ""
	s.Engine.HeartbeatAt = time.Time{}
	s.Engine.UndoStack = nil
	return s
}
