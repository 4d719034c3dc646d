package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
	"github.com/mcdev12/auctiondraft/go/internal/sqlutil"
)

var _ snapshot.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM draft_snapshots WHERE draft_id = ?`, draftID.String(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return models.DecodeSnapshot([]byte(raw))
}

// Put replaces the draft's row unless the stored cursor is already ahead.
func (s *Store) Put(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var n int64
	err = retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO draft_snapshots (
			  draft_id, schema_version, snapshot, last_action_id, last_action_at,
			  host_id, heartbeat_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (draft_id) DO UPDATE SET
			  schema_version = excluded.schema_version,
			  snapshot       = excluded.snapshot,
			  last_action_id = excluded.last_action_id,
			  last_action_at = excluded.last_action_at,
			  host_id        = excluded.host_id,
			  heartbeat_at   = excluded.heartbeat_at,
			  updated_at     = excluded.updated_at
			WHERE draft_snapshots.last_action_at < excluded.last_action_at
			   OR (draft_snapshots.last_action_at = excluded.last_action_at
			       AND draft_snapshots.last_action_id <= excluded.last_action_id)`,
			snap.DraftID.String(),
			snap.SchemaVersion,
			string(data),
			snap.Engine.LastActionID.String(),
			sqlutil.ToMicros(snap.Engine.LastActionAt),
			sqlutil.ToNullString(snap.Engine.HostID),
			sqlutil.ToMicros(snap.Engine.HeartbeatAt),
			sqlutil.ToMicros(s.clock.Now()),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	if n == 0 {
		return snapshot.ErrStaleWrite
	}
	return nil
}
