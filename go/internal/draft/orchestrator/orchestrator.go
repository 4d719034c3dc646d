// Package orchestrator hosts the single authoritative writer for a draft. A
// Coordinator owns the snapshot: it replays the action log on start, then
// drains live actions through the reducer, persists each result and
// broadcasts it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/actionlog"
	"github.com/mcdev12/auctiondraft/go/internal/draft/broadcast"
	"github.com/mcdev12/auctiondraft/go/internal/draft/reducer"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// ErrSuperseded is returned by Run when the snapshot store holds a newer
// cursor than this host, meaning another coordinator has taken over.
var ErrSuperseded = errors.New("another host has advanced the draft")

type Config struct {
	HeartbeatInterval time.Duration
	// ReorderWindow holds each action this long after it arrives so that an
	// earlier action still in flight can overtake it.
	ReorderWindow time.Duration
	// MaxSeen bounds the dedupe set.
	MaxSeen int
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 2 * time.Second,
		ReorderWindow:     100 * time.Millisecond,
		MaxSeen:           10000,
	}
}

type Option func(*Coordinator)

func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

func WithHostID(id string) Option {
	return func(co *Coordinator) { co.hostID = id }
}

type Coordinator struct {
	draftID   uuid.UUID
	league    models.LeagueConfig
	actions   actionlog.Log
	snapshots snapshot.Store
	publisher broadcast.Publisher
	cfg       Config
	clock     clockwork.Clock
	hostID    string

	queue  *queue
	wakeCh chan struct{}

	// state and dirty belong to the Run goroutine.
	state models.Snapshot
	dirty bool

	mu      sync.RWMutex
	current models.Snapshot
	ready   bool
	// persistedAt is the heartbeat of the last snapshot the store accepted.
	persistedAt time.Time
}

func New(
	draftID uuid.UUID,
	league models.LeagueConfig,
	actions actionlog.Log,
	snapshots snapshot.Store,
	publisher broadcast.Publisher,
	cfg Config,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		draftID:   draftID,
		league:    league.WithDefaults(),
		actions:   actions,
		snapshots: snapshots,
		publisher: publisher,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		hostID:    uuid.New().String()[:8],
		queue:     newQueue(cfg.MaxSeen),
		wakeCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) DraftID() uuid.UUID { return c.draftID }

func (c *Coordinator) HostID() string { return c.hostID }

// Current returns a copy of the latest applied snapshot. ok is false until
// catch-up has finished.
func (c *Coordinator) Current() (models.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return models.Snapshot{}, false
	}
	return c.current.Clone(), true
}

// PersistedAt is the heartbeat carried by the last successful snapshot
// write, or zero when nothing has been written yet.
func (c *Coordinator) PersistedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persistedAt
}

// Run performs catch-up replay and then serves live actions until ctx is
// done.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.catchUp(ctx); err != nil {
		return err
	}

	heartbeat := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	log.Info().
		Str("draft_id", c.draftID.String()).
		Str("host", c.hostID).
		Dur("heartbeat", c.cfg.HeartbeatInterval).
		Dur("reorder_window", c.cfg.ReorderWindow).
		Msg("coordinator live")

	for {
		if err := c.drain(ctx, c.cfg.ReorderWindow, true); err != nil {
			return err
		}

		var (
			timer   clockwork.Timer
			timerCh <-chan time.Time
		)
		if at, ok := c.queue.releaseAt(c.cfg.ReorderWindow); ok {
			wait := at.Sub(c.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer = c.clock.NewTimer(wait)
			timerCh = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				stopAndDrainTimer(timer)
			}
			log.Info().Str("draft_id", c.draftID.String()).Str("host", c.hostID).Msg("coordinator shutting down")
			return nil
		case <-c.wakeCh:
		case <-timerCh:
		case <-heartbeat.Chan():
			if err := c.beat(ctx); err != nil {
				return err
			}
		}
		if timer != nil {
			stopAndDrainTimer(timer)
		}
	}
}

// catchUp loads the stored snapshot, subscribes before reading the backlog
// so nothing appended in between is missed, and drains the backlog without
// the reorder hold. Live actions that arrived meanwhile share the queue, so
// they are folded in the same pass in cursor order.
func (c *Coordinator) catchUp(ctx context.Context) error {
	s, err := c.snapshots.Get(ctx, c.draftID)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		s = models.NewSnapshot(c.draftID, c.league)
		log.Info().Str("draft_id", c.draftID.String()).Msg("no stored snapshot, starting from lobby")
	case err != nil:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	c.state = s

	if err := c.actions.SubscribeNew(ctx, c.draftID, c.Enqueue); err != nil {
		return fmt.Errorf("failed to subscribe to actions: %w", err)
	}

	backlog, err := c.actions.ListSince(ctx, c.draftID, s.Cursor())
	if err != nil {
		return fmt.Errorf("failed to list backlog: %w", err)
	}
	now := c.clock.Now()
	for _, a := range backlog {
		c.queue.push(a, now)
	}

	log.Info().
		Str("draft_id", c.draftID.String()).
		Str("host", c.hostID).
		Time("cursor", s.Engine.LastActionAt).
		Int("backlog", len(backlog)).
		Msg("catching up")

	// The backlog is committed once at the end rather than per action.
	if err := c.drain(ctx, 0, false); err != nil {
		return err
	}
	return c.beat(ctx)
}

// Enqueue accepts an action from any goroutine. Duplicates are dropped.
func (c *Coordinator) Enqueue(a models.Action) {
	if a.DraftID != c.draftID {
		return
	}
	if !c.queue.push(a, c.clock.Now()) {
		log.Debug().Str("action_id", a.ActionID.String()).Msg("duplicate action dropped")
		return
	}
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// drain applies every action that has cleared the reorder window.
func (c *Coordinator) drain(ctx context.Context, window time.Duration, commitEach bool) error {
	for {
		a, ok := c.queue.pop(c.clock.Now(), window)
		if !ok {
			return nil
		}
		if !c.apply(a) || !commitEach {
			continue
		}
		if err := c.commit(ctx); err != nil {
			return err
		}
	}
}

// apply reports whether the snapshot moved.
func (c *Coordinator) apply(a models.Action) bool {
	next, out := reducer.Apply(c.league, c.state, a)
	if out.Ignored() {
		log.Warn().
			Str("draft_id", c.draftID.String()).
			Str("action_id", a.ActionID.String()).
			Str("type", string(a.Type)).
			Time("created_at", a.CreatedAt).
			Time("cursor", c.state.Engine.LastActionAt).
			Msg("late action dropped")
		return false
	}

	ev := log.Debug()
	if out.Err != nil {
		ev = log.Info().AnErr("reason", out.Err)
	}
	ev.Str("draft_id", c.draftID.String()).
		Str("action_id", a.ActionID.String()).
		Str("type", string(a.Type)).
		Bool("applied", out.Applied).
		Msg("action processed")

	c.state = next
	return true
}

// beat refreshes the heartbeat and rewrites the snapshot. It also retries a
// write that failed earlier.
func (c *Coordinator) beat(ctx context.Context) error {
	if c.dirty {
		log.Info().Str("draft_id", c.draftID.String()).Msg("retrying deferred snapshot write")
	}
	return c.commit(ctx)
}

// commit stamps host and heartbeat, persists, publishes and only then
// exposes the result through Current. A failed write is logged and left
// dirty for the next heartbeat; a fenced write stops the coordinator.
func (c *Coordinator) commit(ctx context.Context) error {
	c.state.Engine.HostID = c.hostID
	c.state.Engine.HeartbeatAt = actionlog.Timestamp(c.clock.Now())

	if err := c.snapshots.Put(ctx, c.state); err != nil {
		if errors.Is(err, snapshot.ErrStaleWrite) {
			log.Error().
				Str("draft_id", c.draftID.String()).
				Str("host", c.hostID).
				Msg("snapshot store is ahead of this host, stepping down")
			return ErrSuperseded
		}
		if ctx.Err() != nil {
			return nil
		}
		c.dirty = true
		log.Error().Err(err).Str("draft_id", c.draftID.String()).Msg("failed to persist snapshot")
	} else {
		c.dirty = false
		c.mu.Lock()
		c.persistedAt = c.state.Engine.HeartbeatAt
		c.mu.Unlock()
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, c.state); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("draft_id", c.draftID.String()).Msg("failed to publish snapshot")
		}
	}

	c.mu.Lock()
	c.current = c.state.Clone()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
