package entity

// GameUpdated - snapshot of a game, published after every accepted state change
// and returned by queries.
type GameUpdated struct {
	GameID      string `json:"game_id"`
	Board       Board  `json:"board"`
	CurrentTurn string `json:"current_turn"`
	Winner      string `json:"winner"`
	Finished    bool   `json:"finished"`
	Status      string `json:"status"`
	PlayerX     string `json:"player_x,omitempty"`
	PlayerO     string `json:"player_o,omitempty"`
}

// GameSummary - an entry of the available games list.
type GameSummary struct {
	GameID  string `json:"game_id"`
	PlayerX string `json:"player_x,omitempty"`
	PlayerO string `json:"player_o,omitempty"`
}

// MoveCommand - a queued move.
type MoveCommand struct {
	GameID   string `json:"game_id"`
	Position int    `json:"position"`
	Mark     string `json:"mark"`
	PlayerID string `json:"player_id"`
}
