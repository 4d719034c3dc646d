package resolver

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/auctiondraft/go/internal/draft/timing"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// Rejection reasons. Callers match them with errors.Is.
var (
	ErrUnknownTeam        = errors.New("unknown team")
	ErrNotBidding         = errors.New("no auction open for bids")
	ErrAuctionClosed      = errors.New("auction clock has expired")
	ErrNoEligibleSlot     = errors.New("no open roster slot for position")
	ErrBidTooLow          = errors.New("bid below minimum")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrExceedsMaxBid      = errors.New("bid exceeds max bid")
)

// RemainingCash is budget minus spent.
func RemainingCash(team models.Team) int {
	return team.Remaining()
}

// OpenSlotsBySlot returns the unfilled capacity of every configured slot.
func OpenSlotsBySlot(cfg models.LeagueConfig, team models.Team) map[string]int {
	open := make(map[string]int, len(cfg.RosterSlots))
	for _, s := range cfg.RosterSlots {
		n := s.Count - team.SlotUsage(s.Name)
		if n < 0 {
			n = 0
		}
		open[s.Name] = n
	}
	return open
}

// OpenSlots is the remaining roster capacity across all slots.
func OpenSlots(cfg models.LeagueConfig, team models.Team) int {
	total := 0
	for _, n := range OpenSlotsBySlot(cfg, team) {
		total += n
	}
	return total
}

// Reserve is the cash that must stay back to fill every other open slot at
// the minimum increment.
func Reserve(cfg models.LeagueConfig, team models.Team) int {
	open := OpenSlots(cfg, team)
	if open <= 1 {
		return 0
	}
	return (open - 1) * cfg.WithDefaults().MinIncrement
}

// MaxBid is the most the team can bid without leaving a slot unfillable.
func MaxBid(cfg models.LeagueConfig, team models.Team) int {
	return max(0, RemainingCash(team)-Reserve(cfg, team))
}

// ValidSlots lists, in configured order, the open slots a player of position may fill.
func ValidSlots(cfg models.LeagueConfig, team models.Team, position string) []string {
	var slots []string
	for _, s := range cfg.RosterSlots {
		if s.Count-team.SlotUsage(s.Name) <= 0 {
			continue
		}
		if s.Accepts(position) {
			slots = append(slots, s.Name)
		}
	}
	return slots
}

// CanBid checks an amount against the team's slots and cash. currentBid is
// the standing high bid.
func CanBid(cfg models.LeagueConfig, team models.Team, position string, amount, currentBid int) error {
	cfg = cfg.WithDefaults()
	if len(ValidSlots(cfg, team, position)) == 0 {
		return fmt.Errorf("%w: team %s has no slot for %s", ErrNoEligibleSlot, team.TeamID, position)
	}
	if minimum := currentBid + cfg.MinIncrement; amount < minimum {
		return fmt.Errorf("%w: %d < %d", ErrBidTooLow, amount, minimum)
	}
	if amount > RemainingCash(team) {
		return fmt.Errorf("%w: %d > %d remaining", ErrInsufficientBudget, amount, RemainingCash(team))
	}
	if maxBid := MaxBid(cfg, team); amount > maxBid {
		return fmt.Errorf("%w: %d > %d", ErrExceedsMaxBid, amount, maxBid)
	}
	return nil
}

// CheckBid validates a bid against a whole snapshot at time at. The reducer
// applies it with the action's createdAt; the gateway uses it to reject bids
// before they reach the log.
func CheckBid(cfg models.LeagueConfig, s models.Snapshot, teamID string, amount int, at time.Time) error {
	if s.Phase != models.PhaseBidding || !s.Auction.Active() || s.PendingSlot != nil || s.Auction.Call == models.CallSold {
		return ErrNotBidding
	}
	if timing.Expired(s.Auction.EndsAt, at) {
		return ErrAuctionClosed
	}
	team, ok := s.Team(teamID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	return CanBid(cfg, team, s.Auction.Player.Position, amount, s.Auction.CurrentBid)
}

// Quote summarizes what a team can do for a player of the given position.
type Quote struct {
	TeamID        string   `json:"team_id"`
	Position      string   `json:"position"`
	RemainingCash int      `json:"remaining_cash"`
	OpenSlots     int      `json:"open_slots"`
	Reserve       int      `json:"reserve"`
	MaxBid        int      `json:"max_bid"`
	ValidSlots    []string `json:"valid_slots"`
	Eligible      bool     `json:"eligible"`
}

func QuoteFor(cfg models.LeagueConfig, team models.Team, position string) Quote {
	slots := ValidSlots(cfg, team, position)
	return Quote{
		TeamID:        team.TeamID,
		Position:      position,
		RemainingCash: RemainingCash(team),
		OpenSlots:     OpenSlots(cfg, team),
		Reserve:       Reserve(cfg, team),
		MaxBid:        MaxBid(cfg, team),
		ValidSlots:    slots,
		Eligible:      len(slots) > 0,
	}
}
