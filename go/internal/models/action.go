package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ActionType names a user intent.
type ActionType string

const (
	ActionStartDraft    ActionType = "start_draft"
	ActionNominate      ActionType = "nominate"
	ActionBid           ActionType = "bid"
	ActionResolveSale   ActionType = "resolve_sale"
	ActionPauseDraft    ActionType = "pause_draft"
	ActionResumeDraft   ActionType = "resume_draft"
	ActionUndoLast      ActionType = "undo_last"
	ActionForceNominate ActionType = "force_nominate"
	ActionSetStylePack  ActionType = "set_style_pack"
	ActionSettle        ActionType = "settle"
	ActionAssignSlot    ActionType = "assign_slot"
	ActionAdvanceCall   ActionType = "advance_call"
)

var knownActionTypes = []ActionType{
	ActionStartDraft,
	ActionNominate,
	ActionBid,
	ActionResolveSale,
	ActionPauseDraft,
	ActionResumeDraft,
	ActionUndoLast,
	ActionForceNominate,
	ActionSetStylePack,
	ActionSettle,
	ActionAssignSlot,
	ActionAdvanceCall,
}

// IsKnown reports whether the reducer has a transition for t.
func (t ActionType) IsKnown() bool {
	return slices.Contains(knownActionTypes, t)
}

// Action is an immutable, uniquely identified intent appended to the action log.
type Action struct {
	ActionID  uuid.UUID       `json:"action_id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	UserID    string          `json:"user_id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAction builds an unsent action. ActionID and CreatedAt are assigned by
// the log on append.
func NewAction(draftID uuid.UUID, userID string, actionType ActionType, payload any) (Action, error) {
	a := Action{
		DraftID: draftID,
		UserID:  userID,
		Type:    actionType,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Action{}, fmt.Errorf("failed to marshal %s payload: %w", actionType, err)
		}
		a.Payload = raw
	}
	return a, nil
}

// Cursor is the action's position in the total order.
func (a Action) Cursor() Cursor {
	return Cursor{At: a.CreatedAt, ActionID: a.ActionID}
}

// Less orders actions by (CreatedAt, ActionID).
func (a Action) Less(b Action) bool {
	return a.Cursor().Before(b.Cursor())
}

// SortActions sorts in place by (CreatedAt, ActionID).
func SortActions(actions []Action) {
	slices.SortFunc(actions, func(a, b Action) int {
		return a.Cursor().Compare(b.Cursor())
	})
}

// DecodePayload unmarshals the action payload into T.
func DecodePayload[T any](a Action) (T, error) {
	var out T
	if len(a.Payload) == 0 {
		return out, fmt.Errorf("%s: empty payload", a.Type)
	}
	if err := json.Unmarshal(a.Payload, &out); err != nil {
		return out, fmt.Errorf("%s: %w", a.Type, err)
	}
	return out, nil
}

// Cursor is a position in the (CreatedAt, ActionID) order. The zero cursor
// sorts before every action.
type Cursor struct {
	At       time.Time `json:"at"`
	ActionID uuid.UUID `json:"action_id"`
}

// Compare returns -1, 0 or 1.
func (c Cursor) Compare(o Cursor) int {
	if c.At.Before(o.At) {
		return -1
	}
	if c.At.After(o.At) {
		return 1
	}
	return bytes.Compare(c.ActionID[:], o.ActionID[:])
}

func (c Cursor) Before(o Cursor) bool { return c.Compare(o) < 0 }

func (c Cursor) After(o Cursor) bool { return c.Compare(o) > 0 }

func (c Cursor) IsZero() bool {
	return c.At.IsZero() && c.ActionID == uuid.Nil
}

// Payloads

type NominatePayload struct {
	TeamID string `json:"team_id"`
	Player Player `json:"player"`
}

type BidPayload struct {
	TeamID string `json:"team_id"`
	Amount int    `json:"amount"`
}

type PausePayload struct {
	Reason string `json:"reason,omitempty"`
}

type StylePackPayload struct {
	Style string `json:"style"`
}

type AssignSlotPayload struct {
	TeamID   string `json:"team_id"`
	PlayerID string `json:"player_id"`
	Slot     string `json:"slot"`
}
