// Package gateway is the client-facing edge of a draft: action submission
// over HTTP and websocket, snapshot reads, max-bid quotes and live snapshot
// push.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/draft/actionlog"
	"github.com/mcdev12/auctiondraft/go/internal/draft/broadcast"
	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/draft/snapshot"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// SnapshotReader is the read half of snapshot.Store.
type SnapshotReader interface {
	Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error)
}

// Leagues resolves the configuration of every draft this gateway serves.
type Leagues interface {
	League(draftID uuid.UUID) (models.LeagueConfig, bool)
	Drafts() []uuid.UUID
}

type Config struct {
	ConnectionConfig ConnectionConfig
	// StaleAfter is how long a host may miss heartbeats before /health
	// reports the draft as stale.
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		StaleAfter:       10 * time.Second,
	}
}

type Option func(*Service)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

type Service struct {
	actions    actionlog.Log
	snapshots  SnapshotReader
	leagues    Leagues
	subscriber broadcast.Subscriber
	cm         *ConnectionManager
	clock      clockwork.Clock
	config     Config

	mu     sync.RWMutex
	latest map[uuid.UUID]models.Snapshot
}

func NewService(config Config, actions actionlog.Log, snapshots SnapshotReader, leagues Leagues, subscriber broadcast.Subscriber, opts ...Option) *Service {
	s := &Service{
		actions:    actions,
		snapshots:  snapshots,
		leagues:    leagues,
		subscriber: subscriber,
		cm:         NewConnectionManager(config.ConnectionConfig),
		clock:      clockwork.NewRealClock(),
		config:     config,
		latest:     make(map[uuid.UUID]models.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cm.OnMessage(s.handleClientMessage)
	return s
}

// Start subscribes to snapshot broadcasts for every configured draft and
// runs the connection manager. It returns once subscriptions are in place.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Int("drafts", len(s.leagues.Drafts())).Msg("starting draft gateway service")

	for _, draftID := range s.leagues.Drafts() {
		if err := s.subscriber.Subscribe(ctx, draftID, broadcast.Latest(s.onSnapshot)); err != nil {
			return fmt.Errorf("subscribe to draft %s: %w", draftID, err)
		}
	}
	go s.cm.Start(ctx)
	return nil
}

// Connections exposes websocket statistics.
func (s *Service) Connections() ConnectionStats {
	return s.cm.GetConnectionStats()
}

func (s *Service) onSnapshot(snap models.Snapshot) {
	snap.Engine.UndoStack = nil
	s.mu.Lock()
	s.latest[snap.DraftID] = snap
	s.mu.Unlock()

	data, err := s.encode(ServerMessage{Type: MessageSnapshot, DraftID: snap.DraftID.String(), Snapshot: &snap})
	if err != nil {
		log.Error().Err(err).Str("draft_id", snap.DraftID.String()).Msg("failed to encode snapshot")
		return
	}
	s.cm.BroadcastToDraft(snap.DraftID, data)
}

// Snapshot returns the newest known state of a draft. live is false when no
// coordinator has written it yet and the lobby state is returned instead.
func (s *Service) Snapshot(ctx context.Context, draftID uuid.UUID) (snap models.Snapshot, live bool, err error) {
	league, ok := s.leagues.League(draftID)
	if !ok {
		return models.Snapshot{}, false, ErrUnknownDraft
	}

	s.mu.RLock()
	cached, ok := s.latest[draftID]
	s.mu.RUnlock()
	if ok {
		return cached, true, nil
	}

	stored, err := s.snapshots.Get(ctx, draftID)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return models.NewSnapshot(draftID, league), false, nil
	case err != nil:
		return models.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	stored.Engine.UndoStack = nil
	return stored, true, nil
}

// Submit validates and appends a client action. Bids are checked against the
// newest snapshot first and rejected without reaching the log.
func (s *Service) Submit(ctx context.Context, draftID uuid.UUID, req SubmitRequest) (SubmitResponse, error) {
	league, ok := s.leagues.League(draftID)
	if !ok {
		return SubmitResponse{}, ErrUnknownDraft
	}
	if !req.Type.IsKnown() {
		return SubmitResponse{}, reject(http.StatusBadRequest, "unknown_action", fmt.Sprintf("unknown action type %q", req.Type))
	}
	if req.UserID == "" {
		return SubmitResponse{}, reject(http.StatusBadRequest, "missing_user", "user_id is required")
	}

	if req.Type == models.ActionBid {
		if err := s.precheckBid(ctx, draftID, league, req); err != nil {
			return SubmitResponse{}, err
		}
	}

	stored, err := s.actions.Append(ctx, models.Action{
		ActionID: req.ActionID,
		DraftID:  draftID,
		UserID:   req.UserID,
		Type:     req.Type,
		Payload:  req.Payload,
	})
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("failed to append action: %w", err)
	}

	log.Debug().
		Str("draft_id", draftID.String()).
		Str("action_id", stored.ActionID.String()).
		Str("type", string(stored.Type)).
		Msg("action accepted")
	return SubmitResponse{ActionID: stored.ActionID, CreatedAt: stored.CreatedAt}, nil
}

func (s *Service) precheckBid(ctx context.Context, draftID uuid.UUID, league models.LeagueConfig, req SubmitRequest) error {
	var p models.BidPayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil {
		return reject(http.StatusBadRequest, "malformed_payload", "bid payload must be {team_id, amount}")
	}
	snap, _, err := s.Snapshot(ctx, draftID)
	if err != nil {
		return err
	}
	if err := resolver.CheckBid(league, snap, p.TeamID, p.Amount, s.clock.Now()); err != nil {
		return reject(http.StatusUnprocessableEntity, BidRejectionReason(err), err.Error())
	}
	return nil
}

// MaxBid quotes what teamID can bid for a player of position.
func (s *Service) MaxBid(ctx context.Context, draftID uuid.UUID, teamID, position string) (resolver.Quote, error) {
	league, ok := s.leagues.League(draftID)
	if !ok {
		return resolver.Quote{}, ErrUnknownDraft
	}
	snap, _, err := s.Snapshot(ctx, draftID)
	if err != nil {
		return resolver.Quote{}, err
	}
	team, ok := snap.Team(teamID)
	if !ok {
		return resolver.Quote{}, reject(http.StatusNotFound, "unknown_team", fmt.Sprintf("team %q is not in this draft", teamID))
	}
	return resolver.QuoteFor(league, team, position), nil
}

func (s *Service) handleClientMessage(c *Connection, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "action" {
		s.reply(c, ServerMessage{
			Type:     MessageRejected,
			Rejected: &Rejection{Reason: "malformed_message", Message: "expected {type: \"action\", action: {...}}"},
		}, msg.RequestID)
		return
	}
	if msg.Action.UserID == "" {
		msg.Action.UserID = c.UserID
	}

	resp, err := s.Submit(context.Background(), c.DraftID, msg.Action)
	if err != nil {
		s.reply(c, ServerMessage{Type: MessageRejected, Rejected: rejectionOf(err)}, msg.RequestID)
		return
	}
	s.reply(c, ServerMessage{Type: MessageAccepted, Accepted: &resp}, msg.RequestID)
}

func (s *Service) reply(c *Connection, msg ServerMessage, requestID string) {
	msg.DraftID = c.DraftID.String()
	msg.RequestID = requestID
	data, err := s.encode(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to encode reply")
		return
	}
	if !s.cm.SendTo(c, data) {
		log.Warn().Str("connection_id", c.ID).Msg("dropping reply to closed or slow connection")
	}
}

func (s *Service) encode(msg ServerMessage) ([]byte, error) {
	msg.Timestamp = s.clock.Now().UTC()
	return json.Marshal(msg)
}
