package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func TestStorePollerDeliversChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	store := snapshot.NewMemoryStore()
	draftID := uuid.New()

	var (
		mu  sync.Mutex
		got []models.Snapshot
	)
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}

	p := NewStorePoller(store, time.Second, clock)
	require.NoError(t, p.Subscribe(ctx, draftID, func(s models.Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}))
	assert.Equal(t, 0, count())

	first := snapshotAt(draftID, base)
	first.Engine.UndoStack = []models.Snapshot{snapshotAt(draftID, base.Add(-time.Second))}
	require.NoError(t, store.Put(ctx, first))

	tick := func() {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	tick()
	require.Eventually(t, func() bool { return count() == 1 }, time.Second, 5*time.Millisecond)

	// Unchanged snapshots are not redelivered.
	tick()
	tick()
	assert.Equal(t, 1, count())

	beat := first.Clone()
	beat.Engine.HeartbeatAt = base.Add(time.Minute)
	require.NoError(t, store.Put(ctx, beat))
	tick()
	require.Eventually(t, func() bool { return count() == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got[0].Engine.UndoStack)
	assert.Equal(t, base.Add(time.Minute), got[1].Engine.HeartbeatAt)
}
