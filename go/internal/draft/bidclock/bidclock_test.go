package bidclock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/draft/reducer"
	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

var t0 = time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)

func league() models.LeagueConfig {
	return models.LeagueConfig{
		Teams:                     []models.TeamConfig{{TeamID: "a"}, {TeamID: "b"}},
		AntiSnipeThresholdSeconds: 5,
		AntiSnipeSeconds:          10,
	}.WithDefaults()
}

func bidding(draftID uuid.UUID, cursorAt, endsAt time.Time) models.Snapshot {
	s := models.NewSnapshot(draftID, league())
	s.Phase = models.PhaseBidding
	s.Auction = models.Auction{
		Player:           &models.Player{PlayerID: "p1", Name: "Runner", Position: "RB"},
		CurrentBid:       5,
		HighBidderTeamID: "a",
		EndsAt:           endsAt,
		Call:             models.CallNone,
		NominatedBy:      "a",
	}
	s.Engine.LastActionAt = cursorAt
	s.Engine.LastActionID = uuid.New()
	return s
}

type recorder struct {
	mu      sync.Mutex
	ticks   []Tick
	settles []models.Action
}

func (r *recorder) tick(t Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
}

func (r *recorder) settle(a models.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settles = append(r.settles, a)
}

func (r *recorder) settleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.settles)
}

func newController(clock clockwork.Clock, r *recorder) *Controller {
	return New(league(), DefaultConfig(), r.tick, r.settle, WithClock(clock), WithUserID("client-1"))
}

func TestRenderCountsDown(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := &recorder{}
	c := newController(clock, r)

	c.Render()
	assert.Empty(t, r.ticks, "nothing to render before a snapshot")

	c.Reconcile(bidding(uuid.New(), t0, t0.Add(10*time.Second)))
	c.Render()
	clock.Advance(2500 * time.Millisecond)
	c.Render()

	require.Len(t, r.ticks, 2)
	assert.Equal(t, 10, r.ticks[0].SecondsLeft)
	assert.Equal(t, 7500*time.Millisecond, r.ticks[1].Remaining)
	assert.Equal(t, 8, r.ticks[1].SecondsLeft)
	assert.Equal(t, "p1", r.ticks[1].PlayerID)
	assert.False(t, r.ticks[1].Projected)
}

func TestProjectBidUsesAntiSnipeRule(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := &recorder{}
	c := newController(clock, r)
	draftID := uuid.New()
	c.Reconcile(bidding(draftID, t0, t0.Add(30*time.Second)))

	// Outside the threshold nothing moves.
	assert.Equal(t, t0.Add(30*time.Second), c.ProjectBid(t0.Add(10*time.Second)))

	// Inside it the deadline is pushed to bid time + anti-snipe.
	assert.Equal(t, t0.Add(37*time.Second), c.ProjectBid(t0.Add(27*time.Second)))

	clock.Advance(27 * time.Second)
	c.Render()
	require.Len(t, r.ticks, 1)
	assert.True(t, r.ticks[0].Projected)
	assert.Equal(t, 10, r.ticks[0].SecondsLeft)

	// The next snapshot wins over the projection.
	c.Reconcile(bidding(draftID, t0.Add(27*time.Second), t0.Add(36*time.Second)))
	c.Render()
	require.Len(t, r.ticks, 2)
	assert.False(t, r.ticks[1].Projected)
	assert.Equal(t, t0.Add(36*time.Second), r.ticks[1].EndsAt)
}

func TestReconcileIgnoresOlderSnapshots(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := &recorder{}
	c := newController(clock, r)
	draftID := uuid.New()

	c.Reconcile(bidding(draftID, t0.Add(time.Second), t0.Add(20*time.Second)))
	c.Reconcile(bidding(draftID, t0, t0.Add(5*time.Second)))
	c.Render()
	require.Len(t, r.ticks, 1)
	assert.Equal(t, t0.Add(20*time.Second), r.ticks[0].EndsAt)
}

func TestSettleRequestedOncePerDeadline(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := &recorder{}
	c := newController(clock, r)
	draftID := uuid.New()
	c.Reconcile(bidding(draftID, t0, t0.Add(10*time.Second)))

	c.CheckSettle()
	assert.Equal(t, 0, r.settleCount())

	clock.Advance(10 * time.Second)
	c.CheckSettle()
	c.CheckSettle()
	require.Equal(t, 1, r.settleCount())
	assert.Equal(t, models.ActionSettle, r.settles[0].Type)
	assert.Equal(t, draftID, r.settles[0].DraftID)
	assert.Equal(t, "client-1", r.settles[0].UserID)
	assert.NotEqual(t, uuid.Nil, r.settles[0].ActionID)

	// A last-second bid moved the deadline; once it passes, ask again.
	c.Reconcile(bidding(draftID, t0.Add(10*time.Second), t0.Add(20*time.Second)))
	clock.Advance(10 * time.Second)
	c.CheckSettle()
	assert.Equal(t, 2, r.settleCount())
}

func TestSettleRetriedAfterRejection(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0.Add(10 * time.Second))
	r := &recorder{}
	c := newController(clock, r)
	draftID := uuid.New()
	s := bidding(draftID, t0, t0.Add(10*time.Second))
	c.Reconcile(s)

	c.CheckSettle()
	require.Equal(t, 1, r.settleCount())

	// The log stamped the settle just before the deadline, so the reducer
	// turned it down and the lot is still open.
	settle := r.settles[0]
	settle.CreatedAt = t0.Add(10*time.Second - 50*time.Millisecond)
	next, out := reducer.Apply(league(), s, settle)
	require.ErrorIs(t, out.Err, reducer.ErrTooEarly)
	require.Equal(t, models.PhaseBidding, next.Phase)

	c.Reconcile(next)
	clock.Advance(time.Second)
	c.CheckSettle()
	assert.Equal(t, 2, r.settleCount())
	c.CheckSettle()
	assert.Equal(t, 2, r.settleCount())
}

func TestSettleRetriedWhenNothingLands(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0.Add(10 * time.Second))
	r := &recorder{}
	c := newController(clock, r)
	c.Reconcile(bidding(uuid.New(), t0, t0.Add(10*time.Second)))

	c.CheckSettle()
	require.Equal(t, 1, r.settleCount())

	clock.Advance(DefaultConfig().SettleRetry - time.Second)
	c.CheckSettle()
	assert.Equal(t, 1, r.settleCount())

	clock.Advance(time.Second)
	c.CheckSettle()
	assert.Equal(t, 2, r.settleCount())
}

func TestNoSettleWhilePausedOrPending(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0.Add(time.Minute))
	r := &recorder{}
	c := newController(clock, r)
	draftID := uuid.New()

	paused := bidding(draftID, t0, t0.Add(10*time.Second))
	paused.Phase = models.PhasePaused
	paused.Engine.PausedSecondsLeft = 4
	c.Reconcile(paused)
	c.CheckSettle()
	c.Render()
	assert.Equal(t, 0, r.settleCount())
	require.Len(t, r.ticks, 1)
	assert.True(t, r.ticks[0].Paused)
	assert.Equal(t, 4, r.ticks[0].SecondsLeft)

	pending := bidding(draftID, t0.Add(time.Second), t0.Add(10*time.Second))
	pending.Auction.Call = models.CallSold
	pending.PendingSlot = &models.PendingSlot{TeamID: "a", Player: *pending.Auction.Player, Price: 5, Options: []string{"RB", "FLEX"}}
	c.Reconcile(pending)
	c.CheckSettle()
	assert.Equal(t, 0, r.settleCount())
}

func TestPlaceBidValidatesLocally(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0.Add(28 * time.Second))
	r := &recorder{}
	c := newController(clock, r)

	_, err := c.PlaceBid("u2", "b", 6)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	draftID := uuid.New()
	c.Reconcile(bidding(draftID, t0, t0.Add(30*time.Second)))

	_, err = c.PlaceBid("u2", "b", 5)
	assert.ErrorIs(t, err, resolver.ErrBidTooLow)

	a, err := c.PlaceBid("u2", "b", 6)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBid, a.Type)
	p, err := models.DecodePayload[models.BidPayload](a)
	require.NoError(t, err)
	assert.Equal(t, models.BidPayload{TeamID: "b", Amount: 6}, p)

	c.Render()
	require.Len(t, r.ticks, 1)
	assert.Equal(t, t0.Add(38*time.Second), r.ticks[0].EndsAt)
	assert.True(t, r.ticks[0].Projected)

	q, err := c.Quote("b")
	require.NoError(t, err)
	assert.Equal(t, "RB", q.Position)
	assert.True(t, q.Eligible)
}

func TestRunRequestsSettle(t *testing.T) {
	r := &recorder{}
	cfg := Config{RenderInterval: 5 * time.Millisecond, SettleInterval: 5 * time.Millisecond}
	c := New(league(), cfg, r.tick, r.settle)
	c.Reconcile(bidding(uuid.New(), t0, t0.Add(time.Second)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return r.settleCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 1, r.settleCount())
}
