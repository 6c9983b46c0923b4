package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"
)

// Game - a single game's mutable record. Callers must hold the game's lock from the store.
type Game struct {
	ID      string
	Board   Board
	Turn    string
	PlayerX string
	PlayerO string
	Winner  string
}

func NewGame(id string) *Game {
	return &Game{
		ID:   id,
		Turn: MarkX,
	}
}

func (that *Game) IsFinished() bool {
	return that.Winner != EmptyCell || that.Board.IsFull()
}

func (that *Game) HasBothPlayers() bool {
	return that.PlayerX != "" && that.PlayerO != ""
}

func (that *Game) IsEmpty() bool {
	return that.PlayerX == "" && that.PlayerO == ""
}

func (that *Game) IsAvailable() bool {
	return !that.HasBothPlayers() && !that.IsFinished()
}

func (that *Game) Status() string {
	switch {
	case that.IsFinished():
		return StatusFinished
	case that.HasBothPlayers():
		return StatusOngoing
	default:
		return StatusWaiting
	}
}

// SeatOf returns the player bound to the mark's seat.
func (that *Game) SeatOf(mark string) (string, bool) {
	switch mark {
	case MarkX:
		return that.PlayerX, true
	case MarkO:
		return that.PlayerO, true
	default:
		return "", false
	}
}

// TakeSeat binds the player to the first open seat, X before O.
func (that *Game) TakeSeat(playerID string) (string, error) {
	switch {
	case that.PlayerX == "":
		that.PlayerX = playerID
		return MarkX, nil
	case that.PlayerO == "":
		that.PlayerO = playerID
		return MarkO, nil
	default:
		return "", apperror.ErrSeatsFull
	}
}

// ReleaseSeat clears the seat held by the player and returns its mark.
func (that *Game) ReleaseSeat(playerID string) (string, error) {
	switch {
	case playerID == "":
		return "", apperror.ErrPlayerNotInGame
	case that.PlayerX == playerID:
		that.PlayerX = ""
		return MarkX, nil
	case that.PlayerO == playerID:
		that.PlayerO = ""
		return MarkO, nil
	default:
		return "", apperror.ErrPlayerNotInGame
	}
}

// MakeTurn validates and applies a move. The first failing check decides the error.
func (that *Game) MakeTurn(position int, mark, playerID string) error {
	if !that.HasBothPlayers() {
		return apperror.ErrNotEnoughPlayers
	}

	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if seat, ok := that.SeatOf(mark); !ok || seat != playerID {
		return fmt.Errorf("%w: mark %q", apperror.ErrWrongPlayer, mark)
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if err := that.Board.ApplyMark(position, mark); err != nil {
		return err
	}

	switch {
	case that.Board.HasWin(mark):
		that.Winner = mark
	case that.Board.IsFull():
		// draw: finished without a winner
	default:
		that.Turn = OtherMark(mark)
	}

	return nil
}

// Snapshot copies the observable state.
func (that *Game) Snapshot() GameUpdated {
	return GameUpdated{
		GameID:      that.ID,
		Board:       that.Board,
		CurrentTurn: that.Turn,
		Winner:      that.Winner,
		Finished:    that.IsFinished(),
		Status:      that.Status(),
		PlayerX:     that.PlayerX,
		PlayerO:     that.PlayerO,
	}
}

func (that *Game) Summary() GameSummary {
	return GameSummary{
		GameID:  that.ID,
		PlayerX: that.PlayerX,
		PlayerO: that.PlayerO,
	}
}
