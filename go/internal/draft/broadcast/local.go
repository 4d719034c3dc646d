package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// Local fans snapshots out inside one process.
type Local struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]*localDraft
	nextID int
}

type localDraft struct {
	latest *models.Snapshot
	subs   map[int]func(models.Snapshot)
}

func NewLocal() *Local {
	return &Local{drafts: make(map[uuid.UUID]*localDraft)}
}

func (l *Local) draft(id uuid.UUID) *localDraft {
	d, ok := l.drafts[id]
	if !ok {
		d = &localDraft{subs: make(map[int]func(models.Snapshot))}
		l.drafts[id] = d
	}
	return d
}

func (l *Local) Publish(ctx context.Context, s models.Snapshot) error {
	s = wire(s).Clone()

	l.mu.Lock()
	d := l.draft(s.DraftID)
	d.latest = &s
	fns := make([]func(models.Snapshot), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s.Clone())
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, draftID uuid.UUID, fn func(models.Snapshot)) error {
	l.mu.Lock()
	d := l.draft(draftID)
	id := l.nextID
	l.nextID++
	d.subs[id] = fn
	var latest *models.Snapshot
	if d.latest != nil {
		s := d.latest.Clone()
		latest = &s
	}
	l.mu.Unlock()

	if latest != nil {
		fn(*latest)
	}

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(d.subs, id)
		l.mu.Unlock()
	}()
	return nil
}

// Latest returns the last snapshot published for a draft.
func (l *Local) Latest(draftID uuid.UUID) (models.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.drafts[draftID]
	if !ok || d.latest == nil {
		return models.Snapshot{}, false
	}
	return d.latest.Clone(), true
}

// Subscribers returns the number of live subscriptions for a draft.
func (l *Local) Subscribers(draftID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.drafts[draftID]; ok {
		return len(d.subs)
	}
	return 0
}
