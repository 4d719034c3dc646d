// Package sqlitestore keeps the action log and snapshots in a single SQLite
// file. It backs single-host runs and the draftctl tooling; subscriptions
// are served by polling.
package sqlitestore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const DefaultPollInterval = 250 * time.Millisecond

type Store struct {
	db           *sql.DB
	clock        clockwork.Clock
	pollInterval time.Duration

	// appendMu serializes Append within this process; SQLite allows a single
	// writer anyway and this avoids burning retries on our own contention.
	appendMu sync.Mutex
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.pollInterval = d }
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	s := &Store{
		db:           db,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Debug().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tooling queries.
func (s *Store) DB() *sql.DB {
	return s.db
}
