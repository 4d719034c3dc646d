package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Pool runs one coordinator per hosted draft. A coordinator that steps down
// is dropped from the pool without stopping the others; any other failure
// cancels the pool.
type Pool struct {
	instanceID string

	mu           sync.RWMutex
	coordinators map[uuid.UUID]*Coordinator
}

func NewPool(instanceID string) *Pool {
	return &Pool{
		instanceID:   instanceID,
		coordinators: make(map[uuid.UUID]*Coordinator),
	}
}

func (p *Pool) Add(c *Coordinator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coordinators[c.DraftID()] = c
}

func (p *Pool) Get(draftID uuid.UUID) (*Coordinator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.coordinators[draftID]
	return c, ok
}

// Drafts lists the drafts this pool is currently hosting.
func (p *Pool) Drafts() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(p.coordinators))
	for id := range p.coordinators {
		ids = append(ids, id)
	}
	return ids
}

func (p *Pool) Run(ctx context.Context) error {
	p.mu.RLock()
	all := make([]*Coordinator, 0, len(p.coordinators))
	for _, c := range p.coordinators {
		all = append(all, c)
	}
	p.mu.RUnlock()

	log.Info().Str("instance", p.instanceID).Int("drafts", len(all)).Msg("coordinator pool started")

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range all {
		g.Go(func() error {
			err := c.Run(ctx)
			if errors.Is(err, ErrSuperseded) {
				p.mu.Lock()
				delete(p.coordinators, c.DraftID())
				p.mu.Unlock()
				log.Warn().
					Str("instance", p.instanceID).
					Str("draft_id", c.DraftID().String()).
					Msg("coordinator stepped down")
				return nil
			}
			return err
		})
	}
	err := g.Wait()
	log.Info().Str("instance", p.instanceID).Msg("coordinator pool stopped")
	return err
}
