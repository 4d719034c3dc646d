package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func snapshotAt(draftID uuid.UUID, at time.Time) models.Snapshot {
	s := models.NewSnapshot(draftID, models.LeagueConfig{Teams: []models.TeamConfig{{TeamID: "a"}, {TeamID: "b"}}})
	s.Engine.LastActionAt = at
	s.Engine.LastActionID = uuid.New()
	return s
}

func TestLocalDeliversLatestThenLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLocal()
	draftID := uuid.New()
	base := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)

	first := snapshotAt(draftID, base)
	first.Engine.UndoStack = []models.Snapshot{snapshotAt(draftID, base.Add(-time.Second))}
	require.NoError(t, l.Publish(ctx, first))

	var got []models.Snapshot
	require.NoError(t, l.Subscribe(ctx, draftID, func(s models.Snapshot) { got = append(got, s) }))
	require.Len(t, got, 1)
	assert.Equal(t, first.Cursor(), got[0].Cursor())
	assert.Nil(t, got[0].Engine.UndoStack)

	second := snapshotAt(draftID, base.Add(time.Second))
	require.NoError(t, l.Publish(ctx, second))
	require.Len(t, got, 2)
	assert.Equal(t, second.Cursor(), got[1].Cursor())

	// Other drafts are not delivered.
	require.NoError(t, l.Publish(ctx, snapshotAt(uuid.New(), base)))
	assert.Len(t, got, 2)

	cancel()
	assert.Eventually(t, func() bool { return l.Subscribers(draftID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestLocalSubscribersGetCopies(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	draftID := uuid.New()

	require.NoError(t, l.Subscribe(ctx, draftID, func(s models.Snapshot) { s.Teams[0].Spent = 99 }))
	require.NoError(t, l.Publish(ctx, snapshotAt(draftID, time.Now())))

	latest, ok := l.Latest(draftID)
	require.True(t, ok)
	assert.Equal(t, 0, latest.Teams[0].Spent)
}

func TestLatestDropsOlderSnapshots(t *testing.T) {
	draftID := uuid.New()
	base := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)

	var got []models.Cursor
	fn := Latest(func(s models.Snapshot) { got = append(got, s.Cursor()) })

	newer := snapshotAt(draftID, base.Add(time.Second))
	older := snapshotAt(draftID, base)
	heartbeat := newer
	heartbeat.Engine.HeartbeatAt = base.Add(2 * time.Second)

	fn(newer)
	fn(older)
	fn(heartbeat)

	assert.Equal(t, []models.Cursor{newer.Cursor(), newer.Cursor()}, got)
}

func TestMsgIDChangesWithHeartbeat(t *testing.T) {
	s := snapshotAt(uuid.New(), time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC))
	s.Engine.HeartbeatAt = s.Engine.LastActionAt
	first := MsgID(s)
	assert.Equal(t, first, MsgID(s.Clone()))

	s.Engine.HeartbeatAt = s.Engine.HeartbeatAt.Add(2 * time.Second)
	assert.NotEqual(t, first, MsgID(s))
	assert.Contains(t, first, s.DraftID.String()+":"+s.Engine.LastActionID.String()+":")
}

func TestJetStreamSubjectAndStreamConfig(t *testing.T) {
	b := &JetStream{config: DefaultJetStreamConfig()}
	draftID := uuid.New()
	assert.Equal(t, "draft.snapshots."+draftID.String(), b.Subject(draftID))

	sc := b.streamConfig()
	assert.Equal(t, []string{"draft.snapshots.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, b.streamConfig()))

	changed := sc
	changed.MaxMsgsPerSubject = 1
	assert.False(t, isStreamConfigEqual(sc, changed))
	assert.Equal(t, jetstream.LimitsPolicy, sc.Retention)
}
