// Package broadcast pushes materialized snapshots from the coordinator to
// everyone watching a draft.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, s models.Snapshot) error
}

// Subscriber delivers snapshots for one draft until ctx is done. The latest
// already published snapshot, if any, is delivered first.
type Subscriber interface {
	Subscribe(ctx context.Context, draftID uuid.UUID, fn func(models.Snapshot)) error
}

// Latest wraps fn so that a snapshot behind one already delivered is
// dropped. Equal cursors pass through, which is how heartbeats arrive.
func Latest(fn func(models.Snapshot)) func(models.Snapshot) {
	var (
		mu   sync.Mutex
		last models.Cursor
		seen bool
	)
	return func(s models.Snapshot) {
		mu.Lock()
		if seen && s.Cursor().Before(last) {
			mu.Unlock()
			return
		}
		last, seen = s.Cursor(), true
		mu.Unlock()
		fn(s)
	}
}

// wire strips what observers never need.
func wire(s models.Snapshot) models.Snapshot {
	s.Engine.UndoStack = nil
	return s
}
