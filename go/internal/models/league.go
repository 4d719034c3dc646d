package models

import (
	"errors"
	"fmt"
)

// FlexAny in an eligibility list accepts every position.
const FlexAny = "*"

// RosterSlot is one line of the roster layout, e.g. {RB, 2} or {FLEX, 1, [RB WR TE]}.
// A slot without an eligibility list only accepts the position of the same name.
type RosterSlot struct {
	Name     string   `json:"name" yaml:"name"`
	Count    int      `json:"count" yaml:"count"`
	Eligible []string `json:"eligible,omitempty" yaml:"eligible,omitempty"`
}

// IsFlex reports whether the slot takes more than its native position.
func (r RosterSlot) IsFlex() bool {
	return len(r.Eligible) > 0
}

// Accepts reports whether a player of the given position may fill the slot.
func (r RosterSlot) Accepts(position string) bool {
	if !r.IsFlex() {
		return r.Name == position
	}
	for _, e := range r.Eligible {
		if e == position || e == FlexAny {
			return true
		}
	}
	return false
}

// TeamConfig seeds a team at draft creation.
type TeamConfig struct {
	TeamID  string `json:"team_id" yaml:"team_id"`
	Name    string `json:"name" yaml:"name"`
	OwnerID string `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
}

// LeagueConfig is the read-only configuration of one auction draft. It is
// supplied at draft creation and never changes once the draft begins.
type LeagueConfig struct {
	Name                      string       `json:"name" yaml:"name"`
	Teams                     []TeamConfig `json:"teams" yaml:"teams"`
	Budget                    int          `json:"budget" yaml:"budget"`
	RosterSlots               []RosterSlot `json:"roster_slots" yaml:"roster_slots"`
	NominationSeconds         int          `json:"nomination_seconds" yaml:"nomination_seconds"`
	BidSeconds                int          `json:"bid_seconds" yaml:"bid_seconds"`
	AntiSnipeThresholdSeconds int          `json:"anti_snipe_threshold_seconds" yaml:"anti_snipe_threshold_seconds"`
	AntiSnipeSeconds          int          `json:"anti_snipe_seconds" yaml:"anti_snipe_seconds"`
	MinIncrement              int          `json:"min_increment" yaml:"min_increment"`
	UndoDepth                 int          `json:"undo_depth" yaml:"undo_depth"`
	CommissionerID            string       `json:"commissioner_id,omitempty" yaml:"commissioner_id,omitempty"`
}

// DefaultRosterSlots is a standard redraft layout.
func DefaultRosterSlots() []RosterSlot {
	return []RosterSlot{
		{Name: "QB", Count: 1},
		{Name: "RB", Count: 2},
		{Name: "WR", Count: 2},
		{Name: "TE", Count: 1},
		{Name: "FLEX", Count: 1, Eligible: []string{"RB", "WR", "TE"}},
		{Name: "K", Count: 1},
		{Name: "DST", Count: 1},
		{Name: "BENCH", Count: 6, Eligible: []string{FlexAny}},
	}
}

// WithDefaults fills every unset numeric setting.
func (c LeagueConfig) WithDefaults() LeagueConfig {
	if c.Budget == 0 {
		c.Budget = 200
	}
	if len(c.RosterSlots) == 0 {
		c.RosterSlots = DefaultRosterSlots()
	}
	if c.NominationSeconds == 0 {
		c.NominationSeconds = 30
	}
	if c.BidSeconds == 0 {
		c.BidSeconds = 15
	}
	if c.AntiSnipeThresholdSeconds == 0 {
		c.AntiSnipeThresholdSeconds = 10
	}
	if c.MinIncrement == 0 {
		c.MinIncrement = 1
	}
	if c.UndoDepth == 0 {
		c.UndoDepth = 20
	}
	return c
}

// TotalSlots is the roster size every team drafts to.
func (c LeagueConfig) TotalSlots() int {
	total := 0
	for _, s := range c.RosterSlots {
		total += s.Count
	}
	return total
}

// Slot looks up a slot by name.
func (c LeagueConfig) Slot(name string) (RosterSlot, bool) {
	for _, s := range c.RosterSlots {
		if s.Name == name {
			return s, true
		}
	}
	return RosterSlot{}, false
}

// Validate checks the configuration is usable for a draft.
func (c LeagueConfig) Validate() error {
	var errs []error
	if c.Budget <= 0 {
		errs = append(errs, errors.New("budget must be positive"))
	}
	if c.MinIncrement <= 0 {
		errs = append(errs, errors.New("min_increment must be positive"))
	}
	if c.NominationSeconds <= 0 || c.BidSeconds <= 0 {
		errs = append(errs, errors.New("timer durations must be positive"))
	}
	if c.AntiSnipeSeconds < 0 || c.AntiSnipeThresholdSeconds < 0 {
		errs = append(errs, errors.New("anti-snipe settings cannot be negative"))
	}
	if c.TotalSlots() == 0 {
		errs = append(errs, errors.New("roster layout has no slots"))
	}
	if c.Budget < c.TotalSlots()*c.MinIncrement {
		errs = append(errs, fmt.Errorf("budget %d cannot fill %d slots at %d each", c.Budget, c.TotalSlots(), c.MinIncrement))
	}

	seenSlots := make(map[string]bool)
	for _, s := range c.RosterSlots {
		if s.Name == "" || s.Count < 0 {
			errs = append(errs, fmt.Errorf("invalid roster slot %q", s.Name))
		}
		if seenSlots[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate roster slot %q", s.Name))
		}
		seenSlots[s.Name] = true
	}

	seenTeams := make(map[string]bool)
	for _, t := range c.Teams {
		if t.TeamID == "" {
			errs = append(errs, errors.New("team_id is required"))
			continue
		}
		if seenTeams[t.TeamID] {
			errs = append(errs, fmt.Errorf("duplicate team %q", t.TeamID))
		}
		seenTeams[t.TeamID] = true
	}
	return errors.Join(errs...)
}
