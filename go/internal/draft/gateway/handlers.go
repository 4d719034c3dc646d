package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler returns every gateway route behind CORS.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /drafts/{draftID}/actions", s.handleSubmit)
	mux.HandleFunc("GET /drafts/{draftID}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /drafts/{draftID}/max-bid", s.handleMaxBid)
	mux.HandleFunc("GET /drafts/{draftID}/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return CORSMiddleware(mux)
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFrom(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		writeError(w, reject(http.StatusBadRequest, "malformed_request", err.Error()))
		return
	}

	resp, err := s.Submit(r.Context(), draftID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFrom(w, r)
	if !ok {
		return
	}
	snap, _, err := s.Snapshot(r.Context(), draftID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleMaxBid(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFrom(w, r)
	if !ok {
		return
	}
	teamID := r.URL.Query().Get("team")
	position := r.URL.Query().Get("position")
	if teamID == "" || position == "" {
		writeError(w, reject(http.StatusBadRequest, "missing_parameter", "team and position are required"))
		return
	}

	quote, err := s.MaxBid(r.Context(), draftID, teamID, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFrom(w, r)
	if !ok {
		return
	}
	snap, _, err := s.Snapshot(r.Context(), draftID)
	if err != nil {
		writeError(w, err)
		return
	}
	initial, err := s.encode(ServerMessage{Type: MessageSnapshot, DraftID: draftID.String(), Snapshot: &snap})
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.URL.Query().Get("user")
	if err := s.cm.UpgradeConnection(w, r, userID, draftID, initial); err != nil {
		// The upgrader has already replied.
		log.Debug().Err(err).Str("draft_id", draftID.String()).Msg("websocket upgrade failed")
	}
}

// DraftHealth is the liveness of one draft's coordinator as observed here.
type DraftHealth struct {
	DraftID     string    `json:"draft_id"`
	HostID      string    `json:"host_id,omitempty"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
	Phase       string    `json:"phase"`
	Stale       bool      `json:"stale"`
}

type HealthReport struct {
	Status      string          `json:"status"`
	Drafts      []DraftHealth   `json:"drafts"`
	Connections ConnectionStats `json:"connections"`
}

// Health reports heartbeat staleness for every served draft.
func (s *Service) Health(ctx context.Context) HealthReport {
	now := s.clock.Now()
	report := HealthReport{Status: "ok", Connections: s.cm.GetConnectionStats()}
	for _, draftID := range s.leagues.Drafts() {
		h := DraftHealth{DraftID: draftID.String(), Stale: true}
		snap, live, err := s.Snapshot(ctx, draftID)
		if err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("health check failed to read snapshot")
		} else if live {
			h.HostID = snap.Engine.HostID
			h.HeartbeatAt = snap.Engine.HeartbeatAt
			h.Phase = string(snap.Phase)
			h.Stale = snap.IsStale(now, s.config.StaleAfter)
		}
		if h.Stale {
			report.Status = "degraded"
		}
		report.Drafts = append(report.Drafts, h)
	}
	return report
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Health(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func draftIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("draftID"))
	if err != nil {
		writeError(w, reject(http.StatusBadRequest, "invalid_draft_id", err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status, body := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
