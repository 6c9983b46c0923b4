package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

type gameStore interface {
	Create(id string) error
	Get(id string) (entity.GameUpdated, error)
	ListAvailable() []entity.GameSummary
}

type gameController interface {
	AssignSeat(gameID string) (*entity.Player, error)
	MakeMove(cmd entity.MoveCommand) (entity.GameUpdated, error)
	Leave(gameID, playerID string) error
}

// GameManager - the command surface used by the HTTP API and the broker consumers.
type GameManager struct {
	logger     *slog.Logger
	store      gameStore
	controller gameController

	newGameID func() string
}

func NewGameManager(logger *slog.Logger, store gameStore, controller gameController) *GameManager {
	return &GameManager{
		logger:     logger.With("component", "game_manager"),
		store:      store,
		controller: controller,
		newGameID:  uuid.NewString,
	}
}

func (that *GameManager) CreateGame(_ context.Context) (string, error) {
	gameID := that.newGameID()

	if err := that.store.Create(gameID); err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	return gameID, nil
}

func (that *GameManager) ListAvailableGames(_ context.Context) []entity.GameSummary {
	return that.store.ListAvailable()
}

func (that *GameManager) GetGame(_ context.Context, gameID string) (entity.GameUpdated, error) {
	game, err := that.store.Get(gameID)
	if err != nil {
		return entity.GameUpdated{}, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

func (that *GameManager) JoinGame(_ context.Context, gameID string) (*entity.Player, error) {
	player, err := that.controller.AssignSeat(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	return player, nil
}

// LeaveGame is acknowledged even when the game or the player is unknown.
func (that *GameManager) LeaveGame(_ context.Context, gameID, playerID string) error {
	err := that.controller.Leave(gameID, playerID)
	if errors.Is(err, apperror.ErrGameNotFound) || errors.Is(err, apperror.ErrPlayerNotInGame) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to leave game: %w", err)
	}

	return nil
}

func (that *GameManager) MakeMove(_ context.Context, cmd entity.MoveCommand) (entity.GameUpdated, error) {
	game, err := that.controller.MakeMove(cmd)
	if err != nil {
		return entity.GameUpdated{}, fmt.Errorf("failed to make move: %w", err)
	}

	return game, nil
}

// HandleMoveCommand is the queued path: a rejected move is logged and dropped.
func (that *GameManager) HandleMoveCommand(ctx context.Context, cmd entity.MoveCommand) {
	log := that.logger.With("method", "HandleMoveCommand", "gameID", cmd.GameID, "playerID", cmd.PlayerID)

	log.Info("move received", "mark", cmd.Mark, "position", cmd.Position)

	if _, err := that.MakeMove(ctx, cmd); err != nil {
		log.Error("move failed", "error", err)
	}
}
