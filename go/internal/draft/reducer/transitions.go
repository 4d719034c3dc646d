package reducer

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
	"github.com/mcdev12/auctiondraft/go/internal/draft/timing"
	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func startDraft(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase != models.PhaseLobby {
		return "", ErrWrongPhase
	}
	if len(s.Teams) < 2 {
		return "", ErrTooFewTeams
	}

	// Seeded from the action id so every replay picks the same team.
	id := a.ActionID
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(id[:8]), binary.BigEndian.Uint64(id[8:])))
	idx := rng.IntN(len(s.Teams))

	s.Phase = models.PhaseNominating
	s.Order = models.Order{NominatingIndex: idx, CurrentNominatorTeamID: s.Teams[idx].TeamID}
	s.Auction = models.Auction{Call: models.CallNone}
	return fmt.Sprintf("draft started, %s nominates first", teamName(*s, s.Teams[idx].TeamID)), nil
}

func nominate(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase != models.PhaseNominating {
		return "", ErrWrongPhase
	}
	p, err := decode[models.NominatePayload](a)
	if err != nil {
		return "", err
	}
	if err := checkNominee(*s, p.Player); err != nil {
		return "", err
	}
	if p.TeamID != s.Order.CurrentNominatorTeamID {
		return "", fmt.Errorf("%w: %s", ErrNotNominator, p.TeamID)
	}
	team, ok := s.Team(p.TeamID)
	if !ok {
		return "", fmt.Errorf("%w: %s", resolver.ErrUnknownTeam, p.TeamID)
	}
	if len(resolver.ValidSlots(cfg, team, p.Player.Position)) == 0 {
		return "", fmt.Errorf("%w: %s", resolver.ErrNoEligibleSlot, p.Player.Position)
	}

	openAuction(cfg, s, p.Player, p.TeamID, false, a.CreatedAt)
	return fmt.Sprintf("%s nominated %s", teamName(*s, p.TeamID), playerName(p.Player)), nil
}

func forceNominate(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if cfg.CommissionerID != "" && a.UserID != cfg.CommissionerID {
		return "", ErrNotCommissioner
	}
	switch s.Phase {
	case models.PhaseNominating:
	case models.PhaseBidding:
		if s.Auction.HasBidder() {
			return "", ErrAuctionHasBids
		}
	default:
		return "", ErrWrongPhase
	}
	p, err := decode[models.NominatePayload](a)
	if err != nil {
		return "", err
	}
	if err := checkNominee(*s, p.Player); err != nil {
		return "", err
	}
	by := p.TeamID
	if by == "" {
		by = s.Order.CurrentNominatorTeamID
	}

	openAuction(cfg, s, p.Player, by, true, a.CreatedAt)
	return fmt.Sprintf("commissioner force-nominated %s", playerName(p.Player)), nil
}

func bid(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	p, err := decode[models.BidPayload](a)
	if err != nil {
		return "", err
	}
	if err := resolver.CheckBid(cfg, *s, p.TeamID, p.Amount, a.CreatedAt); err != nil {
		return "", err
	}

	rules := timing.FromLeague(cfg)
	s.Auction.CurrentBid = p.Amount
	s.Auction.HighBidderTeamID = p.TeamID
	s.Auction.EndsAt = rules.ExtendOnBid(s.Auction.EndsAt, a.CreatedAt)
	s.Auction.SecondsLeft = timing.SecondsLeft(s.Auction.EndsAt, a.CreatedAt)
	s.Auction.Call = models.CallNone
	return fmt.Sprintf("%s bid $%d on %s", teamName(*s, p.TeamID), p.Amount, playerName(*s.Auction.Player)), nil
}

func resolveSale(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if !s.Auction.Active() {
		return "", ErrNoAuction
	}
	if s.PendingSlot != nil {
		return "", ErrSlotPending
	}
	if !s.Auction.HasBidder() {
		return "", ErrNoBidder
	}
	return sell(cfg, s)
}

func settle(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase != models.PhaseBidding || !s.Auction.Active() {
		return "", ErrNoAuction
	}
	if s.PendingSlot != nil {
		return "", ErrSlotPending
	}
	if !timing.Expired(s.Auction.EndsAt, a.CreatedAt) {
		return "", ErrTooEarly
	}
	if s.Auction.HasBidder() {
		return sell(cfg, s)
	}

	name := playerName(*s.Auction.Player)
	finishAuction(cfg, s)
	return fmt.Sprintf("%s went unsold", name), nil
}

func assignSlot(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	pending := s.PendingSlot
	if pending == nil {
		return "", ErrNoPendingSlot
	}
	p, err := decode[models.AssignSlotPayload](a)
	if err != nil {
		return "", err
	}
	if p.TeamID != "" && p.TeamID != pending.TeamID {
		return "", fmt.Errorf("%w: %s", ErrInvalidSlot, p.TeamID)
	}
	if p.PlayerID != "" && p.PlayerID != pending.Player.PlayerID {
		return "", fmt.Errorf("%w: %s", ErrInvalidSlot, p.PlayerID)
	}
	if !slices.Contains(pending.Options, p.Slot) {
		return "", fmt.Errorf("%w: %s", ErrInvalidSlot, p.Slot)
	}

	award(s, pending.TeamID, pending.Player, pending.Price, p.Slot)
	s.PendingSlot = nil
	finishAuction(cfg, s)
	return fmt.Sprintf("%s placed %s at %s", teamName(*s, pending.TeamID), playerName(pending.Player), p.Slot), nil
}

func pauseDraft(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase == models.PhasePaused || s.Phase == models.PhaseLobby {
		return "", ErrWrongPhase
	}
	s.Engine.PausedFrom = s.Phase
	s.Engine.PausedSecondsLeft = 0
	if s.Phase == models.PhaseBidding {
		left := timing.SecondsLeft(s.Auction.EndsAt, a.CreatedAt)
		s.Engine.PausedSecondsLeft = left
		s.Auction.SecondsLeft = left
	}
	s.Phase = models.PhasePaused

	msg := "draft paused"
	if p, err := decode[models.PausePayload](a); err == nil && p.Reason != "" {
		msg += ": " + p.Reason
	}
	return msg, nil
}

func resumeDraft(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase != models.PhasePaused {
		return "", ErrWrongPhase
	}
	target := s.Engine.PausedFrom
	if !target.IsValid() || target == models.PhasePaused || target == models.PhaseLobby {
		target = models.PhaseNominating
		if s.Auction.Active() {
			target = models.PhaseBidding
		}
	}
	if target == models.PhaseBidding && !s.Auction.Active() {
		target = models.PhaseNominating
	}
	if target == models.PhaseBidding {
		left := s.Engine.PausedSecondsLeft
		s.Auction.EndsAt = a.CreatedAt.Add(time.Duration(left) * time.Second)
		s.Auction.SecondsLeft = left
	}
	s.Phase = target
	s.Engine.PausedFrom = ""
	s.Engine.PausedSecondsLeft = 0
	return "draft resumed", nil
}

func setStylePack(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	p, err := decode[models.StylePackPayload](a)
	if err != nil {
		return "", err
	}
	if p.Style == "" {
		return "", fmt.Errorf("%w: empty style", ErrMalformed)
	}
	s.StylePack = p.Style
	return "style pack set to " + p.Style, nil
}

func advanceCall(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error) {
	if s.Phase != models.PhaseBidding || !s.Auction.Active() || s.PendingSlot != nil {
		return "", ErrNoAuction
	}
	next := s.Auction.Call.Next()
	if next == s.Auction.Call {
		return "", ErrWrongPhase
	}
	s.Auction.Call = next
	return fmt.Sprintf("going %s", next), nil
}

// sell awards the current lot to the high bidder when exactly one slot fits,
// otherwise parks it as a pending slot choice.
func sell(cfg models.LeagueConfig, s *models.Snapshot) (string, error) {
	player := *s.Auction.Player
	winner := s.Auction.HighBidderTeamID
	price := s.Auction.CurrentBid

	team, ok := s.Team(winner)
	if !ok {
		return "", fmt.Errorf("%w: %s", resolver.ErrUnknownTeam, winner)
	}
	slots := resolver.ValidSlots(cfg, team, player.Position)
	switch len(slots) {
	case 0:
		return "", fmt.Errorf("%w: %s", resolver.ErrNoEligibleSlot, player.Position)
	case 1:
		award(s, winner, player, price, slots[0])
		finishAuction(cfg, s)
		return fmt.Sprintf("%s sold to %s for $%d", playerName(player), teamName(*s, winner), price), nil
	}

	s.PendingSlot = &models.PendingSlot{
		TeamID:  winner,
		Player:  player,
		Price:   price,
		Options: slots,
	}
	s.Auction.Call = models.CallSold
	return fmt.Sprintf("%s sold to %s for $%d, slot choice pending", playerName(player), teamName(*s, winner), price), nil
}

func award(s *models.Snapshot, teamID string, p models.Player, price int, slot string) {
	i := s.TeamIndex(teamID)
	s.Teams[i].Spent += price
	s.Teams[i].Roster = append(s.Teams[i].Roster, models.RosterEntry{
		PlayerID: p.PlayerID,
		Name:     p.Name,
		Position: p.Position,
		Slot:     slot,
		Price:    price,
	})
}

// finishAuction clears the block and passes nomination to the next team
// with an open roster slot. A paused draft stays paused and resumes into
// nomination.
func finishAuction(cfg models.LeagueConfig, s *models.Snapshot) {
	s.Auction = models.Auction{Call: models.CallNone}
	if len(s.Teams) > 0 {
		idx := nextNominator(cfg, *s)
		s.Order = models.Order{NominatingIndex: idx, CurrentNominatorTeamID: s.Teams[idx].TeamID}
	}
	if s.Phase == models.PhasePaused {
		s.Engine.PausedFrom = models.PhaseNominating
		s.Engine.PausedSecondsLeft = 0
		return
	}
	s.Phase = models.PhaseNominating
}

// nextNominator walks the rotation past teams whose rosters are full. When
// every roster is full the turn simply moves on.
func nextNominator(cfg models.LeagueConfig, s models.Snapshot) int {
	n := len(s.Teams)
	for step := 1; step <= n; step++ {
		idx := (s.Order.NominatingIndex + step) % n
		if resolver.OpenSlots(cfg, s.Teams[idx]) > 0 {
			return idx
		}
	}
	return (s.Order.NominatingIndex + 1) % n
}

func openAuction(cfg models.LeagueConfig, s *models.Snapshot, p models.Player, by string, forced bool, at time.Time) {
	rules := timing.FromLeague(cfg)
	player := p
	s.Phase = models.PhaseBidding
	s.Auction = models.Auction{
		Player:      &player,
		CurrentBid:  1,
		SecondsLeft: rules.NominationSeconds,
		EndsAt:      rules.NominationEndsAt(at),
		Call:        models.CallNone,
		NominatedBy: by,
		Forced:      forced,
	}
}

func checkNominee(s models.Snapshot, p models.Player) error {
	if p.PlayerID == "" || p.Position == "" {
		return fmt.Errorf("%w: no player given", ErrMalformed)
	}
	if s.PendingSlot != nil {
		return ErrSlotPending
	}
	if owner, taken := s.RosteredBy(p.PlayerID); taken {
		return fmt.Errorf("%w: %s on %s", ErrPlayerTaken, p.PlayerID, owner)
	}
	return nil
}

func decode[T any](a models.Action) (T, error) {
	p, err := models.DecodePayload[T](a)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return p, nil
}

func teamName(s models.Snapshot, teamID string) string {
	if t, ok := s.Team(teamID); ok && t.Name != "" {
		return t.Name
	}
	return teamID
}

func playerName(p models.Player) string {
	if p.Name != "" {
		return p.Name
	}
	return p.PlayerID
}
