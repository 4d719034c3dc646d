package orchestrator

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type DraftStatus struct {
	DraftID     string    `json:"draft_id"`
	HostID      string    `json:"host_id"`
	Ready       bool      `json:"ready"`
	Phase       string    `json:"phase,omitempty"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
	PersistedAt time.Time `json:"persisted_at"`
	Stale       bool      `json:"stale"`
}

type HealthStatus struct {
	Healthy  bool          `json:"healthy"`
	Instance string        `json:"instance"`
	Drafts   []DraftStatus `json:"drafts"`
	Errors   []string      `json:"errors,omitempty"`
}

// Health reports every hosted draft. A draft still catching up, or whose
// last successful write is older than staleAfter, makes the pool unhealthy.
func (p *Pool) Health(now time.Time, staleAfter time.Duration) HealthStatus {
	p.mu.RLock()
	all := make([]*Coordinator, 0, len(p.coordinators))
	for _, c := range p.coordinators {
		all = append(all, c)
	}
	p.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].DraftID().String() < all[j].DraftID().String() })

	status := HealthStatus{Healthy: true, Instance: p.instanceID, Drafts: []DraftStatus{}}
	for _, c := range all {
		d := DraftStatus{DraftID: c.DraftID().String(), HostID: c.HostID()}
		s, ok := c.Current()
		switch {
		case !ok:
			status.Errors = append(status.Errors, d.DraftID+": catching up")
		default:
			d.Ready = true
			d.Phase = string(s.Phase)
			d.HeartbeatAt = s.Engine.HeartbeatAt
			d.PersistedAt = c.PersistedAt()
			d.Stale = d.PersistedAt.IsZero() || now.Sub(d.PersistedAt) > staleAfter
			if d.Stale {
				status.Errors = append(status.Errors, d.DraftID+": no snapshot written within "+staleAfter.String())
			}
		}
		status.Drafts = append(status.Drafts, d)
	}
	status.Healthy = len(status.Errors) == 0
	return status
}

// HealthHandler serves Health as JSON, with 503 when unhealthy.
func HealthHandler(p *Pool, clock clockwork.Clock, staleAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := p.Health(clock.Now(), staleAfter)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	}
}
