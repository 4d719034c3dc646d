// Package bidclock is the client half of the auction timer. It renders the
// countdown from the last authoritative snapshot, projects deadlines for the
// caller's own bids with the same rules the reducer uses, and asks for a
// settle once the clock runs out. The coordinator decides; this only asks.
package bidclock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/draft/timing"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

var ErrNoSnapshot = errors.New("no snapshot reconciled yet")

type Config struct {
	RenderInterval time.Duration
	SettleInterval time.Duration
	// SettleRetry is how long to wait before asking again for a deadline
	// that is still unresolved. Zero means the default.
	SettleRetry time.Duration
}

func DefaultConfig() Config {
	return Config{
		RenderInterval: 100 * time.Millisecond,
		SettleInterval: time.Second,
		SettleRetry:    5 * time.Second,
	}
}

// Tick is one countdown frame.
type Tick struct {
	PlayerID    string
	EndsAt      time.Time
	Remaining   time.Duration
	SecondsLeft int
	// Projected is set while a local bid has moved EndsAt ahead of the last
	// snapshot.
	Projected bool
	Paused    bool
}

type Option func(*Controller)

func WithClock(c clockwork.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithUserID sets the user recorded on settle requests.
func WithUserID(id string) Option {
	return func(ctl *Controller) { ctl.userID = id }
}

type Controller struct {
	league models.LeagueConfig
	rules  timing.Rules
	cfg    Config
	clock  clockwork.Clock
	userID string

	onTick   func(Tick)
	onSettle func(models.Action)

	mu        sync.Mutex
	snap      models.Snapshot
	have      bool
	endsAt    time.Time
	projected bool
	// requested holds the deadline a settle was last asked for and when.
	// A deadline is asked for again once a newer snapshot still shows it
	// open, or after SettleRetry.
	requested   settleKey
	requestedAt time.Time
}

type settleKey struct {
	playerID string
	endsAt   time.Time
}

// New builds a controller. onTick receives render frames and onSettle the
// settle actions to submit; either may be nil.
func New(league models.LeagueConfig, cfg Config, onTick func(Tick), onSettle func(models.Action), opts ...Option) *Controller {
	league = league.WithDefaults()
	if cfg.SettleRetry <= 0 {
		cfg.SettleRetry = DefaultConfig().SettleRetry
	}
	c := &Controller{
		league:   league,
		rules:    timing.FromLeague(league),
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		onTick:   onTick,
		onSettle: onSettle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconcile adopts an authoritative snapshot. Older snapshots are ignored;
// a newer one always replaces any projected deadline.
func (c *Controller) Reconcile(s models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.have && s.Cursor().Before(c.snap.Cursor()) {
		return
	}
	// The log moved past our request and the lot is still open: the settle
	// was rejected or never landed.
	if c.have && s.Cursor().After(c.snap.Cursor()) && c.requested == keyOf(s) {
		c.requested = settleKey{}
	}
	c.snap = s
	c.have = true
	c.endsAt = s.Auction.EndsAt
	c.projected = false
}

// ProjectBid returns the deadline a bid placed now would produce and adopts
// it locally until the next snapshot arrives.
func (c *Controller) ProjectBid(now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.have || !c.snap.Auction.Active() {
		return time.Time{}
	}
	c.endsAt = c.rules.ExtendOnBid(c.endsAt, now)
	c.projected = true
	return c.endsAt
}

// PlaceBid checks a bid against the last snapshot and, when it passes,
// projects the new deadline and returns the action to submit.
func (c *Controller) PlaceBid(userID, teamID string, amount int) (models.Action, error) {
	now := c.clock.Now()

	c.mu.Lock()
	if !c.have {
		c.mu.Unlock()
		return models.Action{}, ErrNoSnapshot
	}
	s := c.snap
	s.Auction.EndsAt = c.endsAt
	c.mu.Unlock()

	if err := resolver.CheckBid(c.league, s, teamID, amount, now); err != nil {
		return models.Action{}, err
	}
	a, err := models.NewAction(s.DraftID, userID, models.ActionBid, models.BidPayload{TeamID: teamID, Amount: amount})
	if err != nil {
		return models.Action{}, err
	}
	c.ProjectBid(now)
	return a, nil
}

// Quote is the caller's current bidding room for the lot on the block.
func (c *Controller) Quote(teamID string) (resolver.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.have {
		return resolver.Quote{}, ErrNoSnapshot
	}
	team, ok := c.snap.Team(teamID)
	if !ok {
		return resolver.Quote{}, resolver.ErrUnknownTeam
	}
	position := ""
	if p := c.snap.Auction.Player; p != nil {
		position = p.Position
	}
	return resolver.QuoteFor(c.league, team, position), nil
}

// Run drives the render and settle tickers until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	render := c.clock.NewTicker(c.cfg.RenderInterval)
	settle := c.clock.NewTicker(c.cfg.SettleInterval)
	defer render.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-render.Chan():
			c.Render()
		case <-settle.Chan():
			c.CheckSettle()
		}
	}
}

// Render emits one frame for the current lot, if any.
func (c *Controller) Render() {
	if c.onTick == nil {
		return
	}
	t, ok := c.frame(c.clock.Now())
	if ok {
		c.onTick(t)
	}
}

func (c *Controller) frame(now time.Time) (Tick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.have || !c.snap.Auction.Active() {
		return Tick{}, false
	}
	t := Tick{PlayerID: c.snap.Auction.Player.PlayerID}
	if c.snap.Phase == models.PhasePaused {
		t.Paused = true
		t.SecondsLeft = c.snap.Engine.PausedSecondsLeft
		t.Remaining = time.Duration(t.SecondsLeft) * time.Second
		return t, true
	}
	t.EndsAt = c.endsAt
	t.Remaining = timing.Remaining(c.endsAt, now)
	t.SecondsLeft = timing.SecondsLeft(c.endsAt, now)
	t.Projected = c.projected
	return t, true
}

// CheckSettle asks for a settle when the authoritative deadline has passed.
// Projected deadlines never trigger one: only the snapshot's clock counts.
func (c *Controller) CheckSettle() {
	now := c.clock.Now()

	c.mu.Lock()
	s := c.snap
	ready := c.have &&
		s.Phase == models.PhaseBidding &&
		s.Auction.Active() &&
		s.PendingSlot == nil &&
		s.Auction.Call != models.CallSold &&
		timing.Expired(s.Auction.EndsAt, now)
	key := settleKey{}
	if ready {
		key = keyOf(s)
		if key == c.requested && now.Sub(c.requestedAt) < c.cfg.SettleRetry {
			ready = false
		} else {
			c.requested = key
			c.requestedAt = now
		}
	}
	c.mu.Unlock()

	if !ready || c.onSettle == nil {
		return
	}
	a, err := models.NewAction(s.DraftID, c.userID, models.ActionSettle, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to build settle action")
		return
	}
	a.ActionID = uuid.New()
	log.Debug().
		Str("draft_id", s.DraftID.String()).
		Str("player_id", key.playerID).
		Time("ends_at", key.endsAt).
		Msg("requesting settle")
	c.onSettle(a)
}

func keyOf(s models.Snapshot) settleKey {
	if s.Auction.Player == nil {
		return settleKey{}
	}
	return settleKey{playerID: s.Auction.Player.PlayerID, endsAt: s.Auction.EndsAt}
}
