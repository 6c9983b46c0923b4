package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGameManager struct {
	mock.Mock
}

func (that *mockGameManager) CreateGame(ctx context.Context) (string, error) {
	args := that.Called(ctx)
	return args.String(0), args.Error(1)
}

func (that *mockGameManager) ListAvailableGames(ctx context.Context) []entity.GameSummary {
	return that.Called(ctx).Get(0).([]entity.GameSummary)
}

func (that *mockGameManager) GetGame(ctx context.Context, gameID string) (entity.GameUpdated, error) {
	args := that.Called(ctx, gameID)
	return args.Get(0).(entity.GameUpdated), args.Error(1)
}

func (that *mockGameManager) JoinGame(ctx context.Context, gameID string) (*entity.Player, error) {
	args := that.Called(ctx, gameID)
	player, _ := args.Get(0).(*entity.Player)
	return player, args.Error(1)
}

func (that *mockGameManager) LeaveGame(ctx context.Context, gameID, playerID string) error {
	return that.Called(ctx, gameID, playerID).Error(0)
}

func (that *mockGameManager) MakeMove(ctx context.Context, cmd entity.MoveCommand) (entity.GameUpdated, error) {
	args := that.Called(ctx, cmd)
	return args.Get(0).(entity.GameUpdated), args.Error(1)
}

func newTestRouter(t *testing.T) (http.Handler, *mockGameManager) {
	t.Helper()

	games := &mockGameManager{}
	t.Cleanup(func() {
		games.AssertExpectations(t)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", NewPingHandler().PingHandler)
	NewGameHandler(slog.New(slog.NewJSONHandler(io.Discard, nil)), games).Register(mux)

	return mux, games
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, reader))

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var value T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&value))

	return value
}

func TestPingHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestGameHandler_Create(t *testing.T) {
	t.Run("Returns the new game id", func(t *testing.T) {
		router, games := newTestRouter(t)
		games.On("CreateGame", mock.Anything).Return("game-1", nil).Once()

		rec := serve(router, http.MethodPost, "/api/game/create", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "game-1", decode[createGameResponse](t, rec).GameID)
	})

	t.Run("Store failure", func(t *testing.T) {
		router, games := newTestRouter(t)
		games.On("CreateGame", mock.Anything).Return("", apperror.ErrGameAlreadyExists).Once()

		rec := serve(router, http.MethodPost, "/api/game/create", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGameHandler_ListAvailable(t *testing.T) {
	router, games := newTestRouter(t)
	available := []entity.GameSummary{{GameID: "game-1", PlayerX: "p1"}}
	games.On("ListAvailableGames", mock.Anything).Return(available).Once()

	rec := serve(router, http.MethodGet, "/api/game/available", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, available, decode[[]entity.GameSummary](t, rec))
}

func TestGameHandler_Get(t *testing.T) {
	t.Run("Returns the snapshot", func(t *testing.T) {
		router, games := newTestRouter(t)
		snapshot := entity.GameUpdated{GameID: "game-1", CurrentTurn: entity.MarkX, Status: entity.StatusWaiting}
		games.On("GetGame", mock.Anything, "game-1").Return(snapshot, nil).Once()

		rec := serve(router, http.MethodGet, "/api/game/game-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, snapshot, decode[entity.GameUpdated](t, rec))
	})

	t.Run("Unknown game", func(t *testing.T) {
		router, games := newTestRouter(t)
		games.On("GetGame", mock.Anything, "missing").Return(entity.GameUpdated{}, apperror.ErrGameNotFound).Once()

		rec := serve(router, http.MethodGet, "/api/game/missing", "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "game not found", decode[errorResponse](t, rec).Error)
	})
}

func TestGameHandler_Join(t *testing.T) {
	t.Run("Returns the seat", func(t *testing.T) {
		router, games := newTestRouter(t)
		player := &entity.Player{ID: "p1", Mark: entity.MarkX, GameID: "game-1"}
		games.On("JoinGame", mock.Anything, "game-1").Return(player, nil).Once()

		rec := serve(router, http.MethodPost, "/api/game/game-1/join", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, *player, decode[entity.Player](t, rec))
	})

	for _, err := range []error{apperror.ErrGameNotFound, apperror.ErrSeatsFull} {
		t.Run(err.Error(), func(t *testing.T) {
			router, games := newTestRouter(t)
			games.On("JoinGame", mock.Anything, "game-1").Return(nil, err).Once()

			rec := serve(router, http.MethodPost, "/api/game/game-1/join", "")

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "game not found or full", decode[errorResponse](t, rec).Error)
		})
	}
}

func TestGameHandler_Leave(t *testing.T) {
	t.Run("Acknowledged", func(t *testing.T) {
		router, games := newTestRouter(t)
		games.On("LeaveGame", mock.Anything, "game-1", "p1").Return(nil).Once()

		rec := serve(router, http.MethodPost, "/api/game/game-1/leave?playerId=p1", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Missing player id", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := serve(router, http.MethodPost, "/api/game/game-1/leave", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGameHandler_Move(t *testing.T) {
	cmd := entity.MoveCommand{GameID: "game-1", Position: 4, Mark: entity.MarkX, PlayerID: "p1"}
	body := `{"position":4,"mark":"X","player_id":"p1"}`

	t.Run("Accepted move", func(t *testing.T) {
		router, games := newTestRouter(t)
		snapshot := entity.GameUpdated{GameID: "game-1", CurrentTurn: entity.MarkO, Status: entity.StatusOngoing}
		snapshot.Board[4] = entity.MarkX
		games.On("MakeMove", mock.Anything, cmd).Return(snapshot, nil).Once()

		rec := serve(router, http.MethodPost, "/api/game/game-1/move", body)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, snapshot, decode[entity.GameUpdated](t, rec))
	})

	t.Run("Malformed body", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := serve(router, http.MethodPost, "/api/game/game-1/move", "{")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	for _, tc := range []struct {
		err    error
		status int
	}{
		{err: apperror.ErrGameNotFound, status: http.StatusNotFound},
		{err: apperror.ErrNotEnoughPlayers, status: http.StatusConflict},
		{err: apperror.ErrGameFinished, status: http.StatusConflict},
		{err: apperror.ErrWrongPlayer, status: http.StatusForbidden},
		{err: apperror.ErrNotYourTurn, status: http.StatusConflict},
		{err: apperror.ErrInvalidMove, status: http.StatusUnprocessableEntity},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	} {
		t.Run(tc.err.Error(), func(t *testing.T) {
			router, games := newTestRouter(t)
			games.On("MakeMove", mock.Anything, cmd).Return(entity.GameUpdated{}, tc.err).Once()

			rec := serve(router, http.MethodPost, "/api/game/game-1/move", body)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
