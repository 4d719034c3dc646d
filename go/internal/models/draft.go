package models

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotSchemaVersion is written into every snapshot. Older snapshots are
// migrated by DecodeSnapshot.
const SnapshotSchemaVersion = 2

// MaxLogEntries bounds the audit log carried in the snapshot.
const MaxLogEntries = 500

// Phase defines where the draft is in its lifecycle.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseNominating Phase = "nominating"
	PhaseBidding    Phase = "bidding"
	PhasePaused     Phase = "paused"
)

func (p Phase) IsValid() bool {
	switch p {
	case PhaseLobby, PhaseNominating, PhaseBidding, PhasePaused:
		return true
	}
	return false
}

// Call is the auctioneer announcement. It is cosmetic and never gates a sale.
type Call string

const (
	CallNone  Call = "none"
	CallOnce  Call = "once"
	CallTwice Call = "twice"
	CallSold  Call = "sold"
)

// Next returns the following announcement; twice and sold do not advance.
func (c Call) Next() Call {
	switch c {
	case CallNone, "":
		return CallOnce
	case CallOnce:
		return CallTwice
	}
	return c
}

// Auction is the lot currently on the block.
type Auction struct {
	Player           *Player   `json:"player"`
	CurrentBid       int       `json:"current_bid"`
	HighBidderTeamID string    `json:"high_bidder_team_id,omitempty"`
	SecondsLeft      int       `json:"seconds_left"`
	EndsAt           time.Time `json:"ends_at"`
	Call             Call      `json:"call"`
	NominatedBy      string    `json:"nominated_by,omitempty"`
	Forced           bool      `json:"forced,omitempty"`
}

func (a Auction) Active() bool { return a.Player != nil }

func (a Auction) HasBidder() bool { return a.HighBidderTeamID != "" }

// Order tracks the nomination rotation.
type Order struct {
	NominatingIndex        int    `json:"nominating_index"`
	CurrentNominatorTeamID string `json:"current_nominator_team_id,omitempty"`
}

// PendingSlot is a sale that fits more than one open slot and waits for the
// winner to choose.
type PendingSlot struct {
	TeamID  string   `json:"team_id"`
	Player  Player   `json:"player"`
	Price   int      `json:"price"`
	Options []string `json:"options"`
}

// Engine holds coordinator bookkeeping persisted with the snapshot.
type Engine struct {
	HostID            string     `json:"host_id,omitempty"`
	HeartbeatAt       time.Time  `json:"heartbeat_at"`
	LastActionID      uuid.UUID  `json:"last_action_id"`
	LastActionAt      time.Time  `json:"last_action_at"`
	UndoStack         []Snapshot `json:"undo_stack,omitempty"`
	PausedFrom        Phase      `json:"paused_from,omitempty"`
	PausedSecondsLeft int        `json:"paused_seconds_left,omitempty"`
}

// LogEntry is a human readable audit line. It is never used for replay.
type LogEntry struct {
	At       time.Time  `json:"at"`
	ActionID uuid.UUID  `json:"action_id"`
	Type     ActionType `json:"type"`
	Message  string     `json:"message"`
}

// Snapshot is the full materialized state of one draft.
type Snapshot struct {
	SchemaVersion int          `json:"schema_version"`
	DraftID       uuid.UUID    `json:"draft_id"`
	Phase         Phase        `json:"phase"`
	Teams         []Team       `json:"teams"`
	Auction       Auction      `json:"auction"`
	Order         Order        `json:"order"`
	PendingSlot   *PendingSlot `json:"pending_slot,omitempty"`
	StylePack     string       `json:"style_pack,omitempty"`
	Engine        Engine       `json:"engine"`
	Log           []LogEntry   `json:"log,omitempty"`
}

// NewSnapshot builds the lobby state for a draft from its league config.
func NewSnapshot(draftID uuid.UUID, cfg LeagueConfig) Snapshot {
	cfg = cfg.WithDefaults()
	teams := make([]Team, 0, len(cfg.Teams))
	for _, t := range cfg.Teams {
		teams = append(teams, Team{
			TeamID:  t.TeamID,
			Name:    t.Name,
			OwnerID: t.OwnerID,
			Budget:  cfg.Budget,
		})
	}
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		DraftID:       draftID,
		Phase:         PhaseLobby,
		Teams:         cloneSlice(teams),
		Auction:       Auction{Call: CallNone},
	}
}

// Cursor is the position of the last applied action.
func (s Snapshot) Cursor() Cursor {
	return Cursor{At: s.Engine.LastActionAt, ActionID: s.Engine.LastActionID}
}

// IsStale reports whether the host has missed heartbeats for longer than threshold.
func (s Snapshot) IsStale(now time.Time, threshold time.Duration) bool {
	if s.Engine.HeartbeatAt.IsZero() {
		return true
	}
	return now.Sub(s.Engine.HeartbeatAt) > threshold
}

// TeamIndex returns the index of teamID in Teams, or -1.
func (s Snapshot) TeamIndex(teamID string) int {
	for i, t := range s.Teams {
		if t.TeamID == teamID {
			return i
		}
	}
	return -1
}

// Team returns a copy of the team with teamID.
func (s Snapshot) Team(teamID string) (Team, bool) {
	i := s.TeamIndex(teamID)
	if i < 0 {
		return Team{}, false
	}
	return s.Teams[i], true
}

// RosteredBy returns the team that owns playerID, if any.
func (s Snapshot) RosteredBy(playerID string) (string, bool) {
	for _, t := range s.Teams {
		if t.HasPlayer(playerID) {
			return t.TeamID, true
		}
	}
	return "", false
}

// Clone returns a deep copy. Empty slices come back nil so that two clones of
// equal state compare equal.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Teams != nil {
		out.Teams = make([]Team, len(s.Teams))
		for i, t := range s.Teams {
			out.Teams[i] = t.clone()
		}
	}
	out.Teams = normalize(out.Teams)
	if s.Auction.Player != nil {
		p := *s.Auction.Player
		out.Auction.Player = &p
	}
	if s.PendingSlot != nil {
		ps := *s.PendingSlot
		ps.Options = cloneSlice(s.PendingSlot.Options)
		out.PendingSlot = &ps
	}
	out.Log = cloneSlice(s.Log)
	out.Engine.UndoStack = nil
	if len(s.Engine.UndoStack) > 0 {
		out.Engine.UndoStack = make([]Snapshot, len(s.Engine.UndoStack))
		for i, u := range s.Engine.UndoStack {
			out.Engine.UndoStack[i] = u.Clone()
		}
	}
	return out
}

// AppendLog records an audit line, dropping the oldest past MaxLogEntries.
func (s *Snapshot) AppendLog(e LogEntry) {
	s.Log = append(s.Log, e)
	if over := len(s.Log) - MaxLogEntries; over > 0 {
		s.Log = append([]LogEntry(nil), s.Log[over:]...)
	}
}

func cloneSlice[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func normalize[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	return in
}
