package actionlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// MemoryLog is an in-process Log for tests and single-process runs.
type MemoryLog struct {
	clock clockwork.Clock

	mu     sync.Mutex
	drafts map[uuid.UUID]*memoryDraft
	nextID int
}

type memoryDraft struct {
	actions []models.Action
	byID    map[uuid.UUID]models.Action
	last    time.Time
	subs    map[int]func(models.Action)
}

func NewMemoryLog(clock clockwork.Clock) *MemoryLog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLog{
		clock:  clock,
		drafts: make(map[uuid.UUID]*memoryDraft),
	}
}

func (m *MemoryLog) draft(id uuid.UUID) *memoryDraft {
	d, ok := m.drafts[id]
	if !ok {
		d = &memoryDraft{
			byID: make(map[uuid.UUID]models.Action),
			subs: make(map[int]func(models.Action)),
		}
		m.drafts[id] = d
	}
	return d
}

func (m *MemoryLog) Append(ctx context.Context, a models.Action) (models.Action, error) {
	if err := Validate(a); err != nil {
		return models.Action{}, err
	}

	m.mu.Lock()
	d := m.draft(a.DraftID)
	if a.ActionID == uuid.Nil {
		a.ActionID = uuid.New()
	}
	if existing, ok := d.byID[a.ActionID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	a.CreatedAt = NextTimestamp(m.clock.Now(), d.last)
	d.last = a.CreatedAt
	d.actions = append(d.actions, a)
	d.byID[a.ActionID] = a

	subs := make([]func(models.Action), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(a)
	}
	return a, nil
}

func (m *MemoryLog) ListSince(ctx context.Context, draftID uuid.UUID, after models.Cursor) ([]models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[draftID]
	if !ok {
		return nil, nil
	}
	var out []models.Action
	for _, a := range d.actions {
		if a.Cursor().After(after) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (m *MemoryLog) SubscribeNew(ctx context.Context, draftID uuid.UUID, fn func(models.Action)) error {
	m.mu.Lock()
	d := m.draft(draftID)
	id := m.nextID
	m.nextID++
	d.subs[id] = fn
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(d.subs, id)
		m.mu.Unlock()
	}()
	return nil
}

// Len returns the number of actions stored for a draft.
func (m *MemoryLog) Len(draftID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[draftID]; ok {
		return len(d.actions)
	}
	return 0
}
