package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

const (
	MarkX = "X"
	MarkO = "O"

	EmptyCell = ""

	BoardSize = 9
)

// WinCombos - 3 rows, 3 columns and 2 diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is the 3x3 grid in row-major order. A marked cell is never cleared.
type Board [BoardSize]string

func (that *Board) ApplyMark(position int, mark string) error {
	if position < 0 || position >= len(that) {
		return fmt.Errorf("%w: cell %d is out of range", apperror.ErrInvalidMove, position)
	}

	if that[position] != EmptyCell {
		return fmt.Errorf("%w: cell %d is already occupied", apperror.ErrInvalidMove, position)
	}

	that[position] = mark

	return nil
}

func (that *Board) HasWin(mark string) bool {
	if mark == EmptyCell {
		return false
	}

	for _, combo := range WinCombos {
		if that[combo[0]] == mark && that[combo[1]] == mark && that[combo[2]] == mark {
			return true
		}
	}

	return false
}

func (that *Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// OtherMark returns the opponent's mark.
func OtherMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}
	return MarkX
}
