package actionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/db"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type PostgresConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed notifications
	PingInterval     time.Duration
	// Lookback widens each fallback poll so actions that committed out of
	// timestamp order are still picked up. Redelivery is harmless.
	Lookback time.Duration
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		NotifyChannel:    db.NotifyChannel,
		FallbackInterval: 5 * time.Second,
		PingInterval:     90 * time.Second,
		Lookback:         time.Second,
	}
}

// PostgresLog stores actions in draft_actions. Appends and reads go through
// pgx; live delivery comes from a pq.Listener on the insert trigger plus a
// fallback poll. Run must be running for subscriptions to receive anything.
type PostgresLog struct {
	pool  *pgxpool.Pool
	cfg   PostgresConfig
	clock clockwork.Clock

	mu     sync.Mutex
	subs   map[uuid.UUID]map[int]*subscription
	nextID int
}

type subscription struct {
	fn   func(models.Action)
	last models.Cursor
}

func NewPostgresLog(pool *pgxpool.Pool, cfg PostgresConfig, clock clockwork.Clock) *PostgresLog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PostgresLog{
		pool:  pool,
		cfg:   cfg,
		clock: clock,
		subs:  make(map[uuid.UUID]map[int]*subscription),
	}
}

const actionColumns = `action_id, draft_id, user_id, type, payload, created_at`

func (p *PostgresLog) Append(ctx context.Context, a models.Action) (models.Action, error) {
	if err := Validate(a); err != nil {
		return models.Action{}, err
	}
	if a.ActionID == uuid.Nil {
		a.ActionID = uuid.New()
	}

	var payload any
	if len(a.Payload) > 0 {
		payload = json.RawMessage(a.Payload)
	}

	// The per-draft lock is taken before clock_timestamp() is read and held
	// until commit, so created_at order is commit order within a draft.
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, a.DraftID.String()); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO draft_actions (action_id, draft_id, user_id, type, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (action_id) DO NOTHING
			RETURNING created_at`,
			a.ActionID, a.DraftID, a.UserID, string(a.Type), payload,
		).Scan(&a.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// Already appended; hand back the stored copy.
		return p.Get(ctx, a.ActionID)
	}
	if err != nil {
		return models.Action{}, fmt.Errorf("failed to append action: %w", err)
	}
	a.CreatedAt = Timestamp(a.CreatedAt)
	return a, nil
}

// Get fetches a single action by id.
func (p *PostgresLog) Get(ctx context.Context, actionID uuid.UUID) (models.Action, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+actionColumns+` FROM draft_actions WHERE action_id = $1`, actionID)
	a, err := scanAction(row)
	if err != nil {
		return models.Action{}, fmt.Errorf("failed to fetch action %s: %w", actionID, err)
	}
	return a, nil
}

func (p *PostgresLog) ListSince(ctx context.Context, draftID uuid.UUID, after models.Cursor) ([]models.Action, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+actionColumns+`
		FROM draft_actions
		WHERE draft_id = $1 AND (created_at, action_id) > ($2, $3)
		ORDER BY created_at, action_id`,
		draftID, after.At, after.ActionID,
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

func (p *PostgresLog) SubscribeNew(ctx context.Context, draftID uuid.UUID, fn func(models.Action)) error {
	p.mu.Lock()
	if p.subs[draftID] == nil {
		p.subs[draftID] = make(map[int]*subscription)
	}
	id := p.nextID
	p.nextID++
	p.subs[draftID][id] = &subscription{fn: fn, last: models.Cursor{At: Timestamp(p.clock.Now())}}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs[draftID], id)
		if len(p.subs[draftID]) == 0 {
			delete(p.subs, draftID)
		}
		p.mu.Unlock()
	}()
	return nil
}

// Run listens for insert notifications until ctx is done.
func (p *PostgresLog) Run(ctx context.Context) error {
	l := pq.NewListener(
		p.cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("action listener event")
			}
		},
	)
	if err := l.Listen(p.cfg.NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen to channel: %w", err)
	}
	defer l.Close()

	log.Info().
		Str("channel", p.cfg.NotifyChannel).
		Dur("ping_interval", p.cfg.PingInterval).
		Dur("fallback_interval", p.cfg.FallbackInterval).
		Msg("action listener started")

	pingTicker := p.clock.NewTicker(p.cfg.PingInterval)
	fallbackTicker := p.clock.NewTicker(p.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("action listener shutting down")
			return nil
		case note := <-l.Notify:
			if note == nil {
				// nil notification means the connection was re-established;
				// anything sent in between is recovered by polling.
				p.poll(ctx)
				continue
			}
			if err := p.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle action notification")
			}
		case <-fallbackTicker.Chan():
			p.poll(ctx)
		case <-pingTicker.Chan():
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping action listener")
			}
		}
	}
}

// handleNotification delivers the action named in a "<draft_id>:<action_id>" payload.
func (p *PostgresLog) handleNotification(ctx context.Context, extra string) error {
	draftPart, actionPart, ok := strings.Cut(extra, ":")
	if !ok {
		return fmt.Errorf("malformed notification %q", extra)
	}
	draftID, err := uuid.Parse(draftPart)
	if err != nil {
		return fmt.Errorf("invalid draft id in notification: %w", err)
	}
	if !p.hasSubscribers(draftID) {
		return nil
	}
	actionID, err := uuid.Parse(actionPart)
	if err != nil {
		return fmt.Errorf("invalid action id in notification: %w", err)
	}

	a, err := p.Get(ctx, actionID)
	if err != nil {
		return err
	}
	p.deliver(draftID, []models.Action{a})
	return nil
}

// poll re-reads every subscribed draft from just before its last delivered
// cursor.
func (p *PostgresLog) poll(ctx context.Context) {
	p.mu.Lock()
	from := make(map[uuid.UUID]models.Cursor, len(p.subs))
	for draftID, subs := range p.subs {
		var oldest models.Cursor
		first := true
		for _, s := range subs {
			if first || s.last.Before(oldest) {
				oldest = s.last
				first = false
			}
		}
		from[draftID] = models.Cursor{At: oldest.At.Add(-p.cfg.Lookback)}
	}
	p.mu.Unlock()

	for draftID, cursor := range from {
		actions, err := p.ListSince(ctx, draftID, cursor)
		if err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("fallback poll failed")
			continue
		}
		p.deliver(draftID, actions)
	}
}

func (p *PostgresLog) hasSubscribers(draftID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[draftID]) > 0
}

func (p *PostgresLog) deliver(draftID uuid.UUID, actions []models.Action) {
	if len(actions) == 0 {
		return
	}
	p.mu.Lock()
	var fns []func(models.Action)
	for _, s := range p.subs[draftID] {
		for _, a := range actions {
			if a.Cursor().After(s.last) {
				s.last = a.Cursor()
			}
		}
		fns = append(fns, s.fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		for _, a := range actions {
			fn(a)
		}
	}
}

func scanAction(row pgx.Row) (models.Action, error) {
	var (
		a       models.Action
		typ     string
		payload []byte
	)
	if err := row.Scan(&a.ActionID, &a.DraftID, &a.UserID, &typ, &payload, &a.CreatedAt); err != nil {
		return models.Action{}, err
	}
	a.Type = models.ActionType(typ)
	a.Payload = payload
	a.CreatedAt = Timestamp(a.CreatedAt)
	return a, nil
}
