package reducer

import (
	"errors"
	"fmt"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// CheckInvariants verifies the numeric and structural rules every snapshot
// must satisfy after a transition.
func CheckInvariants(cfg models.LeagueConfig, s models.Snapshot) error {
	var errs []error
	if !s.Phase.IsValid() {
		errs = append(errs, fmt.Errorf("invalid phase %q", s.Phase))
	}
	if s.Phase == models.PhaseBidding && !s.Auction.Active() {
		errs = append(errs, errors.New("bidding without a player on the block"))
	}

	owners := make(map[string]string)
	for _, t := range s.Teams {
		if t.Spent != t.RosterTotal() {
			errs = append(errs, fmt.Errorf("team %s spent %d but roster totals %d", t.TeamID, t.Spent, t.RosterTotal()))
		}
		if t.Spent > t.Budget || t.Spent < 0 {
			errs = append(errs, fmt.Errorf("team %s spent %d of %d", t.TeamID, t.Spent, t.Budget))
		}
		for _, r := range t.Roster {
			if prev, dup := owners[r.PlayerID]; dup {
				errs = append(errs, fmt.Errorf("player %s rostered by %s and %s", r.PlayerID, prev, t.TeamID))
			}
			owners[r.PlayerID] = t.TeamID
		}
		for _, slot := range cfg.RosterSlots {
			if used := t.SlotUsage(slot.Name); used > slot.Count {
				errs = append(errs, fmt.Errorf("team %s has %d in %s (max %d)", t.TeamID, used, slot.Name, slot.Count))
			}
		}
	}

	if s.Auction.HasBidder() {
		t, ok := s.Team(s.Auction.HighBidderTeamID)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("unknown high bidder %s", s.Auction.HighBidderTeamID))
		case s.Auction.CurrentBid > t.Remaining():
			errs = append(errs, fmt.Errorf("high bid %d exceeds %s remaining %d", s.Auction.CurrentBid, t.TeamID, t.Remaining()))
		}
	}
	if s.PendingSlot != nil && s.TeamIndex(s.PendingSlot.TeamID) < 0 {
		errs = append(errs, fmt.Errorf("pending slot for unknown team %s", s.PendingSlot.TeamID))
	}
	return errors.Join(errs...)
}
