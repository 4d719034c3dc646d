package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Config{Kind: KindSQLite, SQLitePath: filepath.Join(t.TempDir(), "draft.db")})
	require.NoError(t, err)
	defer b.Close()

	draftID := uuid.New()
	a, err := models.NewAction(draftID, "u1", models.ActionStartDraft, nil)
	require.NoError(t, err)
	stored, err := b.Actions.Append(ctx, a)
	require.NoError(t, err)

	drafts, err := b.Drafts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{draftID}, drafts)

	s := models.NewSnapshot(draftID, models.LeagueConfig{Teams: []models.TeamConfig{{TeamID: "a"}, {TeamID: "b"}}})
	s.Engine.LastActionAt = stored.CreatedAt
	s.Engine.LastActionID = stored.ActionID
	require.NoError(t, b.Snapshots.Put(ctx, s))

	got, err := b.Snapshots.Get(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Cursor().Compare(got.Cursor()))
}

func TestRunWaitsForSQLite(t *testing.T) {
	b, err := Open(context.Background(), Config{Kind: KindSQLite, SQLitePath: filepath.Join(t.TempDir(), "draft.db")})
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, b.Run(ctx))
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Config{Kind: "redis"})
	assert.ErrorContains(t, err, "unknown store")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STORE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	cfg := ConfigFromEnv()
	assert.Equal(t, KindSQLite, cfg.Kind)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)

	t.Setenv("STORE", "")
	assert.Equal(t, KindPostgres, ConfigFromEnv().Kind)
}
