package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/actionlog"
	"github.com/mcdev12/auctiondraft/go/internal/models"
	"github.com/mcdev12/auctiondraft/go/internal/sqlutil"
)

var _ actionlog.Log = (*Store)(nil)

const actionColumns = `action_id, draft_id, user_id, type, payload, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Append stamps CreatedAt inside the insert transaction so it is strictly
// after every action already stored for the draft.
func (s *Store) Append(ctx context.Context, a models.Action) (models.Action, error) {
	if err := actionlog.Validate(a); err != nil {
		return models.Action{}, err
	}
	if a.ActionID == uuid.Nil {
		a.ActionID = uuid.New()
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	var stored models.Action
	err := retryOnContention(ctx, func() error {
		return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
			existing, err := scanAction(tx.QueryRowContext(ctx,
				`SELECT `+actionColumns+` FROM draft_actions WHERE action_id = ?`, a.ActionID.String()))
			if err == nil {
				stored = existing
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}

			var last sql.NullInt64
			if err := tx.QueryRowContext(ctx,
				`SELECT MAX(created_at) FROM draft_actions WHERE draft_id = ?`, a.DraftID.String(),
			).Scan(&last); err != nil {
				return err
			}

			a.CreatedAt = actionlog.NextTimestamp(s.clock.Now(), sqlutil.FromMicros(last.Int64))
			_, err = tx.ExecContext(ctx, `
				INSERT INTO draft_actions (action_id, draft_id, user_id, type, payload, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				a.ActionID.String(), a.DraftID.String(), a.UserID, string(a.Type),
				sqlutil.ToNullString(string(a.Payload)), sqlutil.ToMicros(a.CreatedAt),
			)
			stored = a
			return err
		})
	})
	if err != nil {
		return models.Action{}, fmt.Errorf("failed to append action: %w", err)
	}
	return stored, nil
}

func (s *Store) ListSince(ctx context.Context, draftID uuid.UUID, after models.Cursor) ([]models.Action, error) {
	// Canonical lowercase UUID text sorts the same as the raw bytes.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM draft_actions
		WHERE draft_id = ?
		  AND (created_at > ? OR (created_at = ? AND action_id > ?))
		ORDER BY created_at, action_id`,
		draftID.String(), sqlutil.ToMicros(after.At), sqlutil.ToMicros(after.At), after.ActionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var out []models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return out, nil
}

// SubscribeNew polls for actions past the draft's newest cursor at the time
// of the call.
func (s *Store) SubscribeNew(ctx context.Context, draftID uuid.UUID, fn func(models.Action)) error {
	last, err := s.latestCursor(ctx, draftID)
	if err != nil {
		return err
	}

	go func() {
		ticker := s.clock.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				actions, err := s.ListSince(ctx, draftID, last)
				if err != nil {
					if ctx.Err() == nil {
						log.Error().Err(err).Str("draft_id", draftID.String()).Msg("action poll failed")
					}
					continue
				}
				for _, a := range actions {
					fn(a)
					last = a.Cursor()
				}
			}
		}
	}()
	return nil
}

func (s *Store) latestCursor(ctx context.Context, draftID uuid.UUID) (models.Cursor, error) {
	var (
		id string
		at int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT action_id, created_at FROM draft_actions
		WHERE draft_id = ?
		ORDER BY created_at DESC, action_id DESC
		LIMIT 1`, draftID.String(),
	).Scan(&id, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cursor{}, nil
	}
	if err != nil {
		return models.Cursor{}, fmt.Errorf("failed to read latest cursor: %w", err)
	}
	actionID, err := uuid.Parse(id)
	if err != nil {
		return models.Cursor{}, err
	}
	return models.Cursor{At: sqlutil.FromMicros(at), ActionID: actionID}, nil
}

// Drafts lists every draft id that has at least one action.
func (s *Store) Drafts(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT draft_id FROM draft_actions ORDER BY draft_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanAction(row rowScanner) (models.Action, error) {
	var (
		a                 models.Action
		actionID, draftID string
		typ               string
		payload           sql.NullString
		createdAt         int64
	)
	if err := row.Scan(&actionID, &draftID, &a.UserID, &typ, &payload, &createdAt); err != nil {
		return models.Action{}, err
	}
	var err error
	if a.ActionID, err = uuid.Parse(actionID); err != nil {
		return models.Action{}, err
	}
	if a.DraftID, err = uuid.Parse(draftID); err != nil {
		return models.Action{}, err
	}
	a.Type = models.ActionType(typ)
	if raw := sqlutil.FromNullString(payload); raw != "" {
		a.Payload = []byte(raw)
	}
	a.CreatedAt = sqlutil.FromMicros(createdAt)
	return a, nil
}
