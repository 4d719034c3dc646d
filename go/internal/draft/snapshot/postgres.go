package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/auctiondraft/go/internal/models"
	"github.com/mcdev12/auctiondraft/go/internal/sqlutil"
)

// PostgresStore keeps one draft_snapshots row per draft.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error) {
	var raw pqtype.NullRawMessage
	err := p.db.QueryRowContext(ctx,
		`SELECT snapshot FROM draft_snapshots WHERE draft_id = $1`, draftID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	data := sqlutil.FromNullRawMessage(raw)
	if data == nil {
		return models.Snapshot{}, ErrNotFound
	}
	return models.DecodeSnapshot(data)
}

// Put upserts the whole row. The update only applies when the new cursor is
// at or after the stored one.
func (p *PostgresStore) Put(ctx context.Context, s models.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO draft_snapshots (
		  draft_id, schema_version, snapshot, last_action_id, last_action_at,
		  host_id, heartbeat_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (draft_id) DO UPDATE SET
		  schema_version = EXCLUDED.schema_version,
		  snapshot       = EXCLUDED.snapshot,
		  last_action_id = EXCLUDED.last_action_id,
		  last_action_at = EXCLUDED.last_action_at,
		  host_id        = EXCLUDED.host_id,
		  heartbeat_at   = EXCLUDED.heartbeat_at,
		  updated_at     = now()
		WHERE (draft_snapshots.last_action_at, draft_snapshots.last_action_id)
		   <= (EXCLUDED.last_action_at, EXCLUDED.last_action_id)`,
		s.DraftID,
		s.SchemaVersion,
		sqlutil.ToNullRawMessage(data),
		s.Engine.LastActionID,
		s.Engine.LastActionAt,
		sqlutil.ToNullString(s.Engine.HostID),
		sqlutil.ToNullTime(s.Engine.HeartbeatAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}
