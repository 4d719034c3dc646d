package models

// RosterEntry is a player won at auction and the slot they occupy.
type RosterEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Slot     string `json:"slot"`
	Price    int    `json:"price"`
}
