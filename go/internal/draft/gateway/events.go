package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// MessageType tags every frame the gateway writes to a websocket.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageAccepted MessageType = "accepted"
	MessageRejected MessageType = "rejected"
)

type ServerMessage struct {
	Type      MessageType      `json:"type"`
	DraftID   string           `json:"draft_id"`
	Timestamp time.Time        `json:"timestamp"`
	Snapshot  *models.Snapshot `json:"snapshot,omitempty"`
	Accepted  *SubmitResponse  `json:"accepted,omitempty"`
	Rejected  *Rejection       `json:"rejected,omitempty"`
	// RequestID echoes the client's id for accepted/rejected replies.
	RequestID string `json:"request_id,omitempty"`
}

// ClientMessage is what a websocket client may send. Only action submission
// is understood.
type ClientMessage struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Action    SubmitRequest `json:"action"`
}

// SubmitRequest is the body of POST /drafts/{draftID}/actions.
type SubmitRequest struct {
	ActionID uuid.UUID         `json:"action_id,omitempty"`
	UserID   string            `json:"user_id"`
	Type     models.ActionType `json:"type"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
}

type SubmitResponse struct {
	ActionID  uuid.UUID `json:"action_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Rejection is returned with 4xx responses. Reason is a stable code.
type Rejection struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
