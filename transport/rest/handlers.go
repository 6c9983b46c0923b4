package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

type gameManager interface {
	CreateGame(ctx context.Context) (string, error)
	ListAvailableGames(ctx context.Context) []entity.GameSummary
	GetGame(ctx context.Context, gameID string) (entity.GameUpdated, error)
	JoinGame(ctx context.Context, gameID string) (*entity.Player, error)
	LeaveGame(ctx context.Context, gameID, playerID string) error
	MakeMove(ctx context.Context, cmd entity.MoveCommand) (entity.GameUpdated, error)
}

type moveRequest struct {
	Position int    `json:"position"`
	Mark     string `json:"mark"`
	PlayerID string `json:"player_id"`
}

type createGameResponse struct {
	GameID string `json:"game_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type GameHandler struct {
	logger *slog.Logger
	games  gameManager
}

func NewGameHandler(logger *slog.Logger, games gameManager) *GameHandler {
	return &GameHandler{
		logger: logger.With("component", "game_handler"),
		games:  games,
	}
}

// Register adds the game routes to mux.
func (that *GameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/game/available", that.ListAvailable)
	mux.HandleFunc("POST /api/game/create", that.Create)
	mux.HandleFunc("GET /api/game/{gameID}", that.Get)
	mux.HandleFunc("POST /api/game/{gameID}/join", that.Join)
	mux.HandleFunc("POST /api/game/{gameID}/leave", that.Leave)
	mux.HandleFunc("POST /api/game/{gameID}/move", that.Move)
}

func (that *GameHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	that.writeJSON(w, http.StatusOK, that.games.ListAvailableGames(r.Context()))
}

func (that *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	gameID, err := that.games.CreateGame(r.Context())
	if err != nil {
		that.logger.Error("failed to create game", "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}

	that.writeJSON(w, http.StatusOK, createGameResponse{GameID: gameID})
}

func (that *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.GetGame(r.Context(), r.PathValue("gameID"))
	if err != nil {
		that.writeError(w, statusOf(err), messageOf(err))
		return
	}

	that.writeJSON(w, http.StatusOK, game)
}

func (that *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	player, err := that.games.JoinGame(r.Context(), r.PathValue("gameID"))
	if errors.Is(err, apperror.ErrGameNotFound) || errors.Is(err, apperror.ErrSeatsFull) {
		that.writeError(w, http.StatusBadRequest, "game not found or full")
		return
	}

	if err != nil {
		that.logger.Error("failed to join game", "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to join game")
		return
	}

	that.writeJSON(w, http.StatusOK, player)
}

func (that *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		that.writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}

	if err := that.games.LeaveGame(r.Context(), r.PathValue("gameID"), playerID); err != nil {
		that.logger.Error("failed to leave game", "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to leave game")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (that *GameHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	game, err := that.games.MakeMove(r.Context(), entity.MoveCommand{
		GameID:   r.PathValue("gameID"),
		Position: req.Position,
		Mark:     req.Mark,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		that.writeError(w, statusOf(err), messageOf(err))
		return
	}

	that.writeJSON(w, http.StatusOK, game)
}

func (that *GameHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func (that *GameHandler) writeError(w http.ResponseWriter, status int, message string) {
	that.writeJSON(w, status, errorResponse{Error: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrWrongPlayer):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotEnoughPlayers),
		errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidMove):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	for _, known := range []error{
		apperror.ErrGameNotFound,
		apperror.ErrWrongPlayer,
		apperror.ErrNotEnoughPlayers,
		apperror.ErrGameFinished,
		apperror.ErrNotYourTurn,
		apperror.ErrInvalidMove,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return http.StatusText(http.StatusInternalServerError)
}
