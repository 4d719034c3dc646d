// Package actionlog is the durable, append-only record of draft actions.
// Snapshots are derived from it and can always be rebuilt by replay.
package actionlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

var ErrInvalidAction = errors.New("invalid action")

// Log is the action log contract.
type Log interface {
	// Append stores a, assigning ActionID when it is nil and CreatedAt
	// always. Appending an ActionID that already exists returns the stored
	// action unchanged.
	//
	// CreatedAt must follow commit order within a draft: an action becomes
	// visible to ListSince and SubscribeNew only after every action with an
	// earlier CreatedAt. A coordinator drops an action that surfaces behind
	// its cursor, while a rebuild from the log applies it, so a store that
	// breaks this makes live state and replay disagree.
	Append(ctx context.Context, a models.Action) (models.Action, error)
	// ListSince returns the draft's actions strictly after cursor, ordered
	// by (CreatedAt, ActionID).
	ListSince(ctx context.Context, draftID uuid.UUID, after models.Cursor) ([]models.Action, error)
	// SubscribeNew calls fn for every action appended after the call until
	// ctx is done. Delivery order is not guaranteed and an action may be
	// delivered more than once. fn must not block.
	SubscribeNew(ctx context.Context, draftID uuid.UUID, fn func(models.Action)) error
}

// Validate checks the fields a caller must supply before Append.
func Validate(a models.Action) error {
	switch {
	case a.DraftID == uuid.Nil:
		return errors.Join(ErrInvalidAction, errors.New("draft_id is required"))
	case a.Type == "":
		return errors.Join(ErrInvalidAction, errors.New("type is required"))
	}
	return nil
}

// Timestamp normalizes a server clock reading to the precision every store
// can hold.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NextTimestamp keeps CreatedAt strictly increasing per draft even when the
// clock stalls or steps back.
func NextTimestamp(now, last time.Time) time.Time {
	now = Timestamp(now)
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}
