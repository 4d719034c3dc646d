package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type SnapshotGetter interface {
	Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error)
}

// StorePoller is a Subscriber that reads the snapshot store on an interval.
// It serves observers in deployments without a message broker. A snapshot is
// delivered whenever its cursor or heartbeat changes.
type StorePoller struct {
	store    SnapshotGetter
	interval time.Duration
	clock    clockwork.Clock
}

func NewStorePoller(store SnapshotGetter, interval time.Duration, clock clockwork.Clock) *StorePoller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StorePoller{store: store, interval: interval, clock: clock}
}

func (p *StorePoller) Subscribe(ctx context.Context, draftID uuid.UUID, fn func(models.Snapshot)) error {
	var (
		last models.Cursor
		beat time.Time
		seen bool
	)
	poll := func() {
		s, err := p.store.Get(ctx, draftID)
		if errors.Is(err, snapshot.ErrNotFound) {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("draft_id", draftID.String()).Msg("snapshot poll failed")
			}
			return
		}
		if seen && s.Cursor().Compare(last) == 0 && s.Engine.HeartbeatAt.Equal(beat) {
			return
		}
		last, beat, seen = s.Cursor(), s.Engine.HeartbeatAt, true
		fn(wire(s))
	}

	poll()
	go func() {
		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				poll()
			}
		}
	}()
	return nil
}
