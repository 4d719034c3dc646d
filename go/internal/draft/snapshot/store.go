// Package snapshot persists the materialized draft state. The coordinator is
// the only writer and always replaces the whole snapshot.
package snapshot

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrStaleWrite is returned when a write would move the stored cursor
	// backwards, i.e. a superseded host is still writing.
	ErrStaleWrite = errors.New("snapshot write is behind the stored cursor")
)

type Store interface {
	Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error)
	Put(ctx context.Context, s models.Snapshot) error
}
