package tictactoe

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
)

type gameStore interface {
	WithExclusive(id string, fn func(handle *repository.Handle) error) error
}

// eventSink must not block: it is called while the game's lock is held,
// so events of one game are enqueued in the order they happened.
type eventSink interface {
	Publish(event entity.GameUpdated)
}

// GameController applies seat assignment, moves and leaves to games held by the store.
type GameController struct {
	logger *slog.Logger
	store  gameStore
	sink   eventSink

	newPlayerID func() string
}

func NewGameController(logger *slog.Logger, store gameStore, sink eventSink) *GameController {
	return &GameController{
		logger:      logger.With("component", "game_controller"),
		store:       store,
		sink:        sink,
		newPlayerID: uuid.NewString,
	}
}

// AssignSeat seats a new player on the first open seat, X before O.
func (that *GameController) AssignSeat(gameID string) (*entity.Player, error) {
	log := that.logger.With("method", "AssignSeat", "gameID", gameID)

	player := &entity.Player{GameID: gameID}

	err := that.store.WithExclusive(gameID, func(handle *repository.Handle) error {
		playerID := that.newPlayerID()

		mark, err := handle.Game.TakeSeat(playerID)
		if err != nil {
			return err
		}

		player.ID = playerID
		player.Mark = mark

		that.sink.Publish(handle.Game.Snapshot())

		return nil
	})
	if err != nil {
		log.Warn("failed to assign seat", "error", err)
		return nil, fmt.Errorf("failed to assign seat: %w", err)
	}

	log.Info("player joined", "playerID", player.ID, "mark", player.Mark)

	return player, nil
}

// MakeMove validates and applies a move. A move that finishes the game evicts it.
func (that *GameController) MakeMove(cmd entity.MoveCommand) (entity.GameUpdated, error) {
	log := that.logger.With("method", "MakeMove", "gameID", cmd.GameID, "playerID", cmd.PlayerID,
		"mark", cmd.Mark, "position", cmd.Position)

	var snapshot entity.GameUpdated

	err := that.store.WithExclusive(cmd.GameID, func(handle *repository.Handle) error {
		if err := handle.Game.MakeTurn(cmd.Position, cmd.Mark, cmd.PlayerID); err != nil {
			return err
		}

		snapshot = handle.Game.Snapshot()
		if snapshot.Finished {
			handle.Evict()
		}

		that.sink.Publish(snapshot)

		return nil
	})
	if err != nil {
		log.Warn("move rejected", "error", err)
		return entity.GameUpdated{}, fmt.Errorf("failed to make move: %w", err)
	}

	switch {
	case snapshot.Winner != entity.EmptyCell:
		log.Info("game won", "winner", snapshot.Winner)
	case snapshot.Finished:
		log.Info("game ended in a draw")
	default:
		log.Debug("move applied", "nextTurn", snapshot.CurrentTurn)
	}

	return snapshot, nil
}

// Leave frees the player's seat. A game left with no players is removed.
func (that *GameController) Leave(gameID, playerID string) error {
	log := that.logger.With("method", "Leave", "gameID", gameID, "playerID", playerID)

	var (
		mark    string
		removed bool
	)

	err := that.store.WithExclusive(gameID, func(handle *repository.Handle) error {
		var err error
		if mark, err = handle.Game.ReleaseSeat(playerID); err != nil {
			return err
		}

		if handle.Game.IsEmpty() {
			handle.Evict()
			removed = true
		}

		that.sink.Publish(handle.Game.Snapshot())

		return nil
	})
	if err != nil {
		log.Warn("failed to leave game", "error", err)
		return fmt.Errorf("failed to leave game: %w", err)
	}

	log.Info("player left", "mark", mark, "gameRemoved", removed)

	return nil
}
