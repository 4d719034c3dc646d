package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

func benchLeague(slots int) models.LeagueConfig {
	return models.LeagueConfig{
		Teams:       []models.TeamConfig{{TeamID: "a"}, {TeamID: "b"}},
		Budget:      200,
		RosterSlots: []models.RosterSlot{{Name: "BENCH", Count: slots, Eligible: []string{models.FlexAny}}},
	}.WithDefaults()
}

func TestMaxBidBoundary(t *testing.T) {
	cfg := benchLeague(12)
	team := models.Team{
		TeamID: "a",
		Budget: 200,
		Spent:  10,
		Roster: []models.RosterEntry{{PlayerID: "p0", Position: "QB", Slot: "BENCH", Price: 10}},
	}

	assert.Equal(t, 190, RemainingCash(team))
	assert.Equal(t, 11, OpenSlots(cfg, team))
	assert.Equal(t, 10, Reserve(cfg, team))
	assert.Equal(t, 180, MaxBid(cfg, team))

	assert.NoError(t, CanBid(cfg, team, "RB", 180, 1))
	assert.ErrorIs(t, CanBid(cfg, team, "RB", 181, 1), ErrExceedsMaxBid)
	assert.ErrorIs(t, CanBid(cfg, team, "RB", 191, 1), ErrInsufficientBudget)
	assert.ErrorIs(t, CanBid(cfg, team, "RB", 1, 1), ErrBidTooLow)
}

func TestReserveWithLastSlot(t *testing.T) {
	cfg := benchLeague(1)
	team := models.Team{TeamID: "a", Budget: 200}

	assert.Equal(t, 0, Reserve(cfg, team))
	assert.Equal(t, 200, MaxBid(cfg, team))
}

func TestMaxBidNeverNegative(t *testing.T) {
	cfg := benchLeague(12)
	team := models.Team{TeamID: "a", Budget: 5}

	assert.Equal(t, 0, MaxBid(cfg, team))
}

func TestValidSlotsNativeAndFlex(t *testing.T) {
	cfg := models.LeagueConfig{Teams: []models.TeamConfig{{TeamID: "a"}}}.WithDefaults()
	team := models.Team{TeamID: "a", Budget: 200}

	assert.Equal(t, []string{"RB", "FLEX", "BENCH"}, ValidSlots(cfg, team, "RB"))
	assert.Equal(t, []string{"QB", "BENCH"}, ValidSlots(cfg, team, "QB"))

	team.Roster = []models.RosterEntry{{PlayerID: "q", Position: "QB", Slot: "QB", Price: 1}}
	assert.Equal(t, []string{"BENCH"}, ValidSlots(cfg, team, "QB"))
}

func TestNoEligibleSlot(t *testing.T) {
	cfg := models.LeagueConfig{
		RosterSlots: []models.RosterSlot{
			{Name: "QB", Count: 1},
			{Name: "FLEX", Count: 1, Eligible: []string{"RB", "WR"}},
		},
	}.WithDefaults()
	team := models.Team{TeamID: "a", Budget: 200}

	assert.ErrorIs(t, CanBid(cfg, team, "K", 2, 1), ErrNoEligibleSlot)
	assert.NoError(t, CanBid(cfg, team, "WR", 2, 1))
}

func TestCheckBidAgainstSnapshot(t *testing.T) {
	cfg := benchLeague(12)
	now := time.Date(2025, 8, 30, 18, 0, 0, 0, time.UTC)
	s := models.NewSnapshot([16]byte{1}, cfg)

	assert.ErrorIs(t, CheckBid(cfg, s, "a", 5, now), ErrNotBidding)

	s.Phase = models.PhaseBidding
	s.Auction = models.Auction{
		Player:     &models.Player{PlayerID: "p1", Position: "WR"},
		CurrentBid: 4,
		EndsAt:     now.Add(10 * time.Second),
		Call:       models.CallNone,
	}

	assert.NoError(t, CheckBid(cfg, s, "a", 5, now))
	assert.ErrorIs(t, CheckBid(cfg, s, "a", 4, now), ErrBidTooLow)
	assert.ErrorIs(t, CheckBid(cfg, s, "zz", 5, now), ErrUnknownTeam)
	assert.ErrorIs(t, CheckBid(cfg, s, "a", 5, now.Add(10*time.Second)), ErrAuctionClosed)
}

func TestQuote(t *testing.T) {
	cfg := benchLeague(3)
	q := QuoteFor(cfg, models.Team{TeamID: "a", Budget: 200, Spent: 0}, "TE")

	require.True(t, q.Eligible)
	assert.Equal(t, 198, q.MaxBid)
	assert.Equal(t, 2, q.Reserve)
	assert.Equal(t, []string{"BENCH"}, q.ValidSlots)
}
