package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/draft/actionlog"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func TestPoolHealth(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	log := actionlog.NewMemoryLog(clock)
	store := snapshot.NewMemoryStore()
	pool := NewPool("test")

	ready := New(uuid.New(), league(), log, store, nil, DefaultConfig(), WithClock(clock), WithHostID("h1"))
	pending := New(uuid.New(), league(), log, store, nil, DefaultConfig(), WithClock(clock), WithHostID("h2"))
	pool.Add(ready)
	pool.Add(pending)
	require.NoError(t, ready.catchUp(ctx))

	status := pool.Health(clock.Now(), 5*time.Second)
	assert.False(t, status.Healthy)
	assert.Len(t, status.Drafts, 2)
	assert.Equal(t, []string{pending.DraftID().String() + ": catching up"}, status.Errors)

	require.NoError(t, pending.catchUp(ctx))
	status = pool.Health(clock.Now(), 5*time.Second)
	assert.True(t, status.Healthy)
	for _, d := range status.Drafts {
		assert.True(t, d.Ready)
		assert.Equal(t, "lobby", d.Phase)
		assert.False(t, d.Stale)
	}

	clock.Advance(time.Minute)
	status = pool.Health(clock.Now(), 5*time.Second)
	assert.False(t, status.Healthy)
	assert.Len(t, status.Errors, 2)
}

func TestHealthHandler(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	pool := NewPool("test")
	c := New(uuid.New(), league(), actionlog.NewMemoryLog(clock), snapshot.NewMemoryStore(), nil, DefaultConfig(), WithClock(clock))
	pool.Add(c)

	rec := httptest.NewRecorder()
	HealthHandler(pool, clock, 5*time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, c.catchUp(context.Background()))
	rec = httptest.NewRecorder()
	HealthHandler(pool, clock, 5*time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Healthy)
	assert.Equal(t, "test", body.Instance)
}

// brokenStore refuses every write while failing is set.
type brokenStore struct {
	snapshot.Store
	failing bool
}

func (b *brokenStore) Put(ctx context.Context, s models.Snapshot) error {
	if b.failing {
		return errors.New("disk full")
	}
	return b.Store.Put(ctx, s)
}

func TestPoolHealthFollowsSuccessfulWrites(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	store := &brokenStore{Store: snapshot.NewMemoryStore(), failing: true}
	c := New(uuid.New(), league(), actionlog.NewMemoryLog(clock), store, nil, DefaultConfig(), WithClock(clock), WithHostID("h1"))
	pool := NewPool("test")
	pool.Add(c)

	require.NoError(t, c.catchUp(ctx))
	for range 30 {
		clock.Advance(2 * time.Second)
		require.NoError(t, c.beat(ctx))
	}

	_, err := store.Get(ctx, c.DraftID())
	require.ErrorIs(t, err, snapshot.ErrNotFound)

	status := pool.Health(clock.Now(), 10*time.Second)
	assert.False(t, status.Healthy)
	require.Len(t, status.Drafts, 1)
	d := status.Drafts[0]
	assert.True(t, d.Ready)
	assert.True(t, d.Stale)
	assert.True(t, d.PersistedAt.IsZero())
	assert.True(t, clock.Now().Equal(d.HeartbeatAt))

	store.failing = false
	require.NoError(t, c.beat(ctx))
	status = pool.Health(clock.Now(), 10*time.Second)
	assert.True(t, status.Healthy)
	assert.True(t, clock.Now().Equal(status.Drafts[0].PersistedAt))

	store.failing = true
	clock.Advance(11 * time.Second)
	require.NoError(t, c.beat(ctx))
	status = pool.Health(clock.Now(), 10*time.Second)
	assert.False(t, status.Healthy)
	assert.True(t, status.Drafts[0].Stale)
}
