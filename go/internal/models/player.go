package models

// Player is the nominated unit of an auction.
type Player struct {
	PlayerID string `json:"player_id" yaml:"player_id"`
	Name     string `json:"name" yaml:"name"`
	Position string `json:"position" yaml:"position"` // 'QB', 'RB', 'WR', etc.
}
