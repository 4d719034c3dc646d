package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func queued(at time.Time) models.Action {
	return models.Action{ActionID: uuid.New(), DraftID: uuid.Nil, Type: models.ActionBid, CreatedAt: at}
}

func TestQueuePopsInCursorOrder(t *testing.T) {
	q := newQueue(0)
	c, a, b := queued(t0.Add(2*time.Second)), queued(t0), queued(t0.Add(time.Second))
	for _, x := range []models.Action{c, a, b} {
		require.True(t, q.push(x, t0))
	}

	var got []models.Action
	for {
		x, ok := q.pop(t0, 0)
		if !ok {
			break
		}
		got = append(got, x)
	}
	assert.Equal(t, []models.Action{a, b, c}, got)
}

func TestQueueHoldsUntilWindowPasses(t *testing.T) {
	q := newQueue(0)
	a := queued(t0)
	q.push(a, t0)

	_, ok := q.pop(t0.Add(99*time.Millisecond), 100*time.Millisecond)
	assert.False(t, ok)

	at, ok := q.releaseAt(100 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, t0.Add(100*time.Millisecond), at)

	got, ok := q.pop(at, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = q.releaseAt(100 * time.Millisecond)
	assert.False(t, ok)
}

func TestQueueDedupeIsBounded(t *testing.T) {
	q := newQueue(2)
	a, b, c := queued(t0), queued(t0), queued(t0)
	assert.True(t, q.push(a, t0))
	assert.False(t, q.push(a, t0))
	assert.True(t, q.push(b, t0))
	assert.True(t, q.push(c, t0))

	// a fell out of the seen set.
	assert.True(t, q.push(a, t0))
	assert.False(t, q.push(c, t0))
}
