// Package db holds the Postgres schema shared by the action log and the
// snapshot store.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// NotifyChannel is the LISTEN channel the insert trigger publishes to. The
// payload is "<draft_id>:<action_id>".
const NotifyChannel = "draft_actions"

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
