package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeague() LeagueConfig {
	return LeagueConfig{
		Name: "test",
		Teams: []TeamConfig{
			{TeamID: "a", Name: "Alpha"},
			{TeamID: "b", Name: "Bravo"},
		},
	}.WithDefaults()
}

func TestCursorOrdering(t *testing.T) {
	base := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	assert.True(t, Cursor{At: base, ActionID: high}.Before(Cursor{At: base.Add(time.Microsecond), ActionID: low}))
	assert.True(t, Cursor{At: base, ActionID: low}.Before(Cursor{At: base, ActionID: high}))
	assert.Equal(t, 0, Cursor{At: base, ActionID: low}.Compare(Cursor{At: base, ActionID: low}))
	assert.True(t, Cursor{}.IsZero())
	assert.True(t, Cursor{At: base, ActionID: low}.After(Cursor{}))
}

func TestSortActions(t *testing.T) {
	base := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)
	a := Action{ActionID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), CreatedAt: base}
	b := Action{ActionID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), CreatedAt: base}
	c := Action{ActionID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: base.Add(time.Second)}

	actions := []Action{c, a, b}
	SortActions(actions)
	assert.Equal(t, []uuid.UUID{b.ActionID, a.ActionID, c.ActionID},
		[]uuid.UUID{actions[0].ActionID, actions[1].ActionID, actions[2].ActionID})
}

func TestDecodePayload(t *testing.T) {
	a, err := NewAction(uuid.New(), "u1", ActionBid, BidPayload{TeamID: "a", Amount: 12})
	require.NoError(t, err)

	p, err := DecodePayload[BidPayload](a)
	require.NoError(t, err)
	assert.Equal(t, BidPayload{TeamID: "a", Amount: 12}, p)

	_, err = DecodePayload[BidPayload](Action{Type: ActionBid})
	assert.Error(t, err)
}

func TestNewSnapshot(t *testing.T) {
	id := uuid.New()
	s := NewSnapshot(id, testLeague())

	assert.Equal(t, SnapshotSchemaVersion, s.SchemaVersion)
	assert.Equal(t, PhaseLobby, s.Phase)
	require.Len(t, s.Teams, 2)
	assert.Equal(t, 200, s.Teams[0].Budget)
	assert.Equal(t, 200, s.Teams[1].Remaining())
	assert.True(t, s.Cursor().IsZero())
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSnapshot(uuid.New(), testLeague())
	s.Teams[0].Roster = []RosterEntry{{PlayerID: "p1", Position: "QB", Slot: "QB", Price: 5}}
	s.Auction.Player = &Player{PlayerID: "p2", Name: "Two", Position: "RB"}
	s.PendingSlot = &PendingSlot{TeamID: "a", Options: []string{"RB", "FLEX"}}
	s.Engine.UndoStack = []Snapshot{NewSnapshot(s.DraftID, testLeague())}

	c := s.Clone()
	c.Teams[0].Roster[0].Price = 99
	c.Auction.Player.Name = "changed"
	c.PendingSlot.Options[0] = "BENCH"
	c.Engine.UndoStack[0].Phase = PhaseBidding

	assert.Equal(t, 5, s.Teams[0].Roster[0].Price)
	assert.Equal(t, "Two", s.Auction.Player.Name)
	assert.Equal(t, "RB", s.PendingSlot.Options[0])
	assert.Equal(t, PhaseLobby, s.Engine.UndoStack[0].Phase)
}

func TestCloneNormalizesEmptySlices(t *testing.T) {
	s := NewSnapshot(uuid.New(), testLeague())
	s.Log = []LogEntry{}
	s.Teams[1].Roster = []RosterEntry{}

	c := s.Clone()
	assert.Nil(t, c.Log)
	assert.Nil(t, c.Teams[1].Roster)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2025, 8, 30, 18, 0, 10, 0, time.UTC)
	s := Snapshot{}
	assert.True(t, s.IsStale(now, 6*time.Second))

	s.Engine.HeartbeatAt = now.Add(-2 * time.Second)
	assert.False(t, s.IsStale(now, 6*time.Second))

	s.Engine.HeartbeatAt = now.Add(-7 * time.Second)
	assert.True(t, s.IsStale(now, 6*time.Second))
}

func TestAppendLogBounded(t *testing.T) {
	var s Snapshot
	for i := 0; i < MaxLogEntries+5; i++ {
		s.AppendLog(LogEntry{Message: "x"})
	}
	assert.Len(t, s.Log, MaxLogEntries)
}

func TestDecodeSnapshotMigratesV1(t *testing.T) {
	raw := []byte(`{
		"draft_id": "5b2a3d4c-1111-4222-8333-944455556666",
		"phase": "bidding",
		"teams": [{"team_id": "a", "budget": 200, "spent": 10,
			"roster": [{"player_id": "p1", "position": "QB", "price": 10}]}],
		"auction": {"player": {"player_id": "p2", "position": "RB"}, "current_bid": 3, "seconds_left": 12},
		"engine": {"last_action_at": "2025-08-30T18:00:00Z"}
	}`)

	s, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, SnapshotSchemaVersion, s.SchemaVersion)
	assert.Equal(t, "QB", s.Teams[0].Roster[0].Slot)
	assert.Equal(t, CallNone, s.Auction.Call)
	assert.Equal(t, time.Date(2025, 8, 30, 18, 0, 12, 0, time.UTC), s.Auction.EndsAt.UTC())
}

func TestDecodeSnapshotRejectsFutureSchema(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"schema_version": 99}`))
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestLeagueValidate(t *testing.T) {
	assert.NoError(t, testLeague().Validate())

	bad := testLeague()
	bad.Budget = 5
	bad.Teams = append(bad.Teams, TeamConfig{TeamID: "a"})
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot fill")
	assert.Contains(t, err.Error(), `duplicate team "a"`)
}

func TestRosterSlotAccepts(t *testing.T) {
	flex := RosterSlot{Name: "FLEX", Count: 1, Eligible: []string{"RB", "WR", "TE"}}
	bench := RosterSlot{Name: "BENCH", Count: 6, Eligible: []string{FlexAny}}
	qb := RosterSlot{Name: "QB", Count: 1}

	assert.True(t, flex.Accepts("WR"))
	assert.False(t, flex.Accepts("QB"))
	assert.True(t, bench.Accepts("K"))
	assert.True(t, qb.Accepts("QB"))
	assert.False(t, qb.Accepts("RB"))
}

func TestCallNext(t *testing.T) {
	assert.Equal(t, CallOnce, CallNone.Next())
	assert.Equal(t, CallTwice, CallOnce.Next())
	assert.Equal(t, CallTwice, CallTwice.Next())
}
