package apperror

import "errors"

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrNotEnoughPlayers  = errors.New("not enough players to start the game")
	ErrGameFinished      = errors.New("game is already finished")
	ErrWrongPlayer       = errors.New("you cannot move as another player")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrInvalidMove       = errors.New("invalid move")
	ErrSeatsFull         = errors.New("game is full")
	ErrGameAlreadyExists = errors.New("game already exists")
	ErrPlayerNotInGame   = errors.New("player is not in the game")
)
