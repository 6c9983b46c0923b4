package entity

// Player - a seat assignment handed out on join.
type Player struct {
	ID     string `json:"player_id"`
	Mark   string `json:"player_symbol"`
	GameID string `json:"game_id,omitempty"`
}
