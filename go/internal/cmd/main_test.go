package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/draft/reducer"
	"github.com/mcdev12/auctiondraft/go/internal/draft/sqlitestore"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type env struct {
	draftID uuid.UUID
	db      string
	drafts  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		draftID: uuid.New(),
		db:      filepath.Join(dir, "draft.db"),
		drafts:  filepath.Join(dir, "drafts.yaml"),
	}
	yaml := fmt.Sprintf(`drafts:
  - draft_id: %s
    league:
      name: Test League
      teams:
        - {team_id: a, name: Alpha}
        - {team_id: b, name: Bravo}
`, e.draftID)
	require.NoError(t, os.WriteFile(e.drafts, []byte(yaml), 0o600))
	return e
}

func (e env) seed(t *testing.T, actions ...models.Action) {
	t.Helper()
	store, err := sqlitestore.Open(e.db)
	require.NoError(t, err)
	defer store.Close()
	for _, a := range actions {
		_, err := store.Append(context.Background(), a)
		require.NoError(t, err)
	}
}

func (e env) action(t *testing.T, typ models.ActionType, payload any) models.Action {
	t.Helper()
	a, err := models.NewAction(e.draftID, "u1", typ, payload)
	require.NoError(t, err)
	return a
}

func (e env) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--store", "sqlite", "--db", e.db, "--drafts", e.drafts))
	err := cmd.Execute()
	return out.String(), err
}

func TestReplayRebuildsAndWrites(t *testing.T) {
	e := newEnv(t)
	e.seed(t,
		e.action(t, models.ActionStartDraft, nil),
		e.action(t, models.ActionSetStylePack, models.StylePackPayload{Style: "neon"}),
		e.action(t, models.ActionResumeDraft, nil),
	)

	out, err := e.run("replay", "--draft", e.draftID.String(), "--write", "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Actions)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, "nominating", result.Phase)
	assert.True(t, result.Deterministic)
	assert.Nil(t, result.StoredMatches)
	assert.True(t, result.Written)

	out, err = e.run("replay", "--draft", e.draftID.String(), "--format", "json")
	require.NoError(t, err)
	result = ReplayResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.StoredMatches)
	assert.True(t, *result.StoredMatches)
	assert.False(t, result.Written)
}

func TestReplayDetectsDivergentSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seed(t, e.action(t, models.ActionStartDraft, nil))
	_, err := e.run("replay", "--draft", e.draftID.String(), "--write")
	require.NoError(t, err)

	// A later action the stored snapshot has not seen.
	e.seed(t, e.action(t, models.ActionPauseDraft, models.PausePayload{Reason: "lunch"}))

	out, err := e.run("replay", "--draft", e.draftID.String())
	require.Error(t, err)
	assert.Equal(t, exitMismatch, exitCode(err))
	assert.Contains(t, out, "stored snapshot: DIFFERS")
}

func TestReplayReportsActionsSkippedBehindCursor(t *testing.T) {
	e := newEnv(t)
	store, err := sqlitestore.Open(e.db)
	require.NoError(t, err)
	ctx := context.Background()

	var logged []models.Action
	for _, a := range []models.Action{
		e.action(t, models.ActionStartDraft, nil),
		e.action(t, models.ActionSetStylePack, models.StylePackPayload{Style: "neon"}),
		e.action(t, models.ActionPauseDraft, models.PausePayload{Reason: "lunch"}),
	} {
		stored, err := store.Append(ctx, a)
		require.NoError(t, err)
		logged = append(logged, stored)
	}
	late := logged[1]

	// A host that saw the pause before the style change surfaced.
	league := models.LeagueConfig{
		Name:  "Test League",
		Teams: []models.TeamConfig{{TeamID: "a", Name: "Alpha"}, {TeamID: "b", Name: "Bravo"}},
	}.WithDefaults()
	live := reducer.Replay(league, models.NewSnapshot(e.draftID, league), []models.Action{logged[0], logged[2]})
	require.Equal(t, models.PhasePaused, live.Phase)
	require.NoError(t, store.Put(ctx, live))
	require.NoError(t, store.Close())

	out, err := e.run("replay", "--draft", e.draftID.String(), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, exitMismatch, exitCode(err))
	assert.ErrorContains(t, err, "skipped 1 actions")

	var result ReplayResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{late.ActionID.String()}, result.MissingFromStored)
	require.NotNil(t, result.StoredMatches)
	assert.False(t, *result.StoredMatches)

	out, err = e.run("replay", "--draft", e.draftID.String())
	require.Error(t, err)
	assert.Contains(t, out, "applied in replay but missing from stored snapshot: 1")
	assert.Contains(t, out, late.ActionID.String())
}

func TestReplayUnknownDraft(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("replay", "--draft", uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
}

func TestStatusReportsStaleHeartbeat(t *testing.T) {
	e := newEnv(t)
	e.seed(t, e.action(t, models.ActionStartDraft, nil))
	_, err := e.run("replay", "--draft", e.draftID.String(), "--write")
	require.NoError(t, err)

	out, err := e.run("status", "--draft", e.draftID.String(), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, exitMismatch, exitCode(err))

	var status StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "nominating", status.Phase)
	assert.True(t, status.Stale)
	require.Len(t, status.Teams, 2)
	assert.Equal(t, 186, status.Teams[0].MaxBid)
	assert.NotEmpty(t, status.Nominator)
}

func TestBuildStatusLiveHeartbeat(t *testing.T) {
	league := models.LeagueConfig{Teams: []models.TeamConfig{{TeamID: "a"}, {TeamID: "b"}}}.WithDefaults()
	now := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)
	s := models.NewSnapshot(uuid.New(), league)
	s.Engine.HeartbeatAt = now.Add(-time.Second)
	s.Engine.HostID = "h1"

	r := buildStatus(league, s, now, 10*time.Second)
	assert.False(t, r.Stale)
	assert.Equal(t, "h1", r.HostID)
	assert.Equal(t, "lobby", r.Phase)
	assert.Empty(t, r.Player)
}

func TestMaxBid(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("max-bid", "--draft", e.draftID.String(), "--team", "a", "--position", "RB", "--format", "json")
	require.NoError(t, err)
	var quote map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &quote))
	assert.EqualValues(t, 186, quote["max_bid"])
	assert.EqualValues(t, 200, quote["remaining_cash"])
	assert.Equal(t, true, quote["eligible"])

	out, err = e.run("max-bid", "--draft", e.draftID.String(), "--team", "a", "--position", "RB")
	require.NoError(t, err)
	assert.Contains(t, out, "max bid:        $186")
	assert.Contains(t, out, "RB, FLEX, BENCH")

	_, err = e.run("max-bid", "--draft", e.draftID.String(), "--team", "zzz", "--position", "RB")
	assert.Error(t, err)
}

func TestDraftsListsConfiguredAndLogged(t *testing.T) {
	e := newEnv(t)
	stray := uuid.New()
	a, err := models.NewAction(stray, "u1", models.ActionStartDraft, nil)
	require.NoError(t, err)
	e.seed(t, e.action(t, models.ActionStartDraft, nil), a)

	out, err := e.run("drafts", "--format", "json")
	require.NoError(t, err)

	var drafts []DraftSummary
	require.NoError(t, json.Unmarshal([]byte(out), &drafts))
	require.Len(t, drafts, 2)
	assert.Equal(t, e.draftID, drafts[0].DraftID)
	assert.Equal(t, "Test League", drafts[0].Name)
	assert.True(t, drafts[0].Configured)
	assert.True(t, drafts[0].Logged)
	assert.Equal(t, stray, drafts[1].DraftID)
	assert.False(t, drafts[1].Configured)
}

func TestInvalidFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("drafts", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}
