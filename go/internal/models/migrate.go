package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")

// DecodeSnapshot parses a stored snapshot and migrates it to SnapshotSchemaVersion.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return Migrate(s)
}

// Migrate upgrades a snapshot in place of any older schema. Version 1
// snapshots carry no schema_version, no ends_at and no roster slots.
func Migrate(s Snapshot) (Snapshot, error) {
	if s.SchemaVersion > SnapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, s.SchemaVersion)
	}
	if s.SchemaVersion < 2 {
		s = migrateV1(s)
	}
	for i := range s.Engine.UndoStack {
		u, err := Migrate(s.Engine.UndoStack[i])
		if err != nil {
			return Snapshot{}, fmt.Errorf("undo entry %d: %w", i, err)
		}
		s.Engine.UndoStack[i] = u
	}
	return s, nil
}

func migrateV1(s Snapshot) Snapshot {
	if s.Phase == "" {
		s.Phase = PhaseLobby
	}
	if s.Auction.Call == "" {
		s.Auction.Call = CallNone
	}
	for ti := range s.Teams {
		for ri := range s.Teams[ti].Roster {
			if s.Teams[ti].Roster[ri].Slot == "" {
				s.Teams[ti].Roster[ri].Slot = s.Teams[ti].Roster[ri].Position
			}
		}
	}
	if s.Auction.Active() && s.Auction.EndsAt.IsZero() && !s.Engine.LastActionAt.IsZero() {
		s.Auction.EndsAt = s.Engine.LastActionAt.Add(time.Duration(s.Auction.SecondsLeft) * time.Second)
	}
	s.SchemaVersion = SnapshotSchemaVersion
	return s
}
