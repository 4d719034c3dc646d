package models

// Team is one manager's side of the draft.
type Team struct {
	TeamID  string        `json:"team_id"`
	Name    string        `json:"name"`
	OwnerID string        `json:"owner_id,omitempty"`
	Budget  int           `json:"budget"`
	Spent   int           `json:"spent"`
	Roster  []RosterEntry `json:"roster"`
}

// Remaining returns the budget the team has not yet committed.
func (t Team) Remaining() int {
	return t.Budget - t.Spent
}

// RosterTotal sums the prices of every rostered player.
func (t Team) RosterTotal() int {
	total := 0
	for _, r := range t.Roster {
		total += r.Price
	}
	return total
}

// HasPlayer reports whether playerID is already on the roster.
func (t Team) HasPlayer(playerID string) bool {
	for _, r := range t.Roster {
		if r.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (t Team) clone() Team {
	out := t
	out.Roster = cloneSlice(t.Roster)
	return out
}

// SlotUsage counts roster entries occupying the named slot.
func (t Team) SlotUsage(slot string) int {
	n := 0
	for _, r := range t.Roster {
		if r.Slot == slot {
			n++
		}
	}
	return n
}
