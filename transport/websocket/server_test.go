package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGames map[string]entity.GameUpdated

func (that fakeGames) Get(id string) (entity.GameUpdated, error) {
	game, ok := that[id]
	if !ok {
		return entity.GameUpdated{}, apperror.ErrGameNotFound
	}

	return game, nil
}

// finishingGames ends the game while its snapshot is being read:
// the returned snapshot is older than the update published meanwhile.
type finishingGames struct {
	hub   *Hub
	final entity.GameUpdated
}

func (that *finishingGames) Get(id string) (entity.GameUpdated, error) {
	if err := that.hub.Publish(context.Background(), that.final); err != nil {
		return entity.GameUpdated{}, err
	}

	return entity.GameUpdated{GameID: id, CurrentTurn: entity.MarkX, Status: entity.StatusOngoing, PlayerX: "p1", PlayerO: "p2"}, nil
}

func newTestServer(t *testing.T, games gameReader) (*Hub, string) {
	t.Helper()

	hub := NewHub(slog.New(slog.NewJSONHandler(io.Discard, nil)), games)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/game/{gameID}", hub.ServeGame)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) entity.GameUpdated {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var update entity.GameUpdated
	require.NoError(t, json.Unmarshal(message, &update))

	return update
}

func TestHub_ServeGame(t *testing.T) {
	t.Run("Streams the snapshot then updates", func(t *testing.T) {
		// Given: a waiting game and a connected client
		games := fakeGames{"game-1": {GameID: "game-1", CurrentTurn: entity.MarkX, Status: entity.StatusWaiting}}
		hub, url := newTestServer(t, games)

		conn := dial(t, url+"/ws/game/game-1")

		// Then: the first frame is the current snapshot
		assert.Equal(t, games["game-1"], readUpdate(t, conn))

		// When: an update of the game is published
		update := entity.GameUpdated{GameID: "game-1", CurrentTurn: entity.MarkO, Status: entity.StatusOngoing, PlayerX: "p1", PlayerO: "p2"}
		update.Board[0] = entity.MarkX
		require.NoError(t, hub.Publish(context.Background(), update))

		// Then: the client receives it
		assert.Equal(t, update, readUpdate(t, conn))
	})

	t.Run("Updates of other games are not delivered", func(t *testing.T) {
		// Given: clients on two games
		games := fakeGames{
			"game-1": {GameID: "game-1", CurrentTurn: entity.MarkX},
			"game-2": {GameID: "game-2", CurrentTurn: entity.MarkX},
		}
		hub, url := newTestServer(t, games)

		first := dial(t, url+"/ws/game/game-1")
		second := dial(t, url+"/ws/game/game-2")
		readUpdate(t, first)
		readUpdate(t, second)

		// When: game-2 and then game-1 are updated
		require.NoError(t, hub.Publish(context.Background(), entity.GameUpdated{GameID: "game-2", CurrentTurn: entity.MarkO, PlayerX: "p3", PlayerO: "p4"}))
		require.NoError(t, hub.Publish(context.Background(), entity.GameUpdated{GameID: "game-1", CurrentTurn: entity.MarkO, PlayerX: "p1", PlayerO: "p2"}))

		// Then: each client only sees its own game
		assert.Equal(t, "game-1", readUpdate(t, first).GameID)
		assert.Equal(t, "game-2", readUpdate(t, second).GameID)
	})

	t.Run("Unknown game", func(t *testing.T) {
		// Given: no games
		_, url := newTestServer(t, fakeGames{})

		// When: a client connects to an unknown game
		_, resp, err := websocket.DefaultDialer.Dial(url+"/ws/game/missing", nil)

		// Then: the upgrade is refused with 404
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Disconnected client is unregistered", func(t *testing.T) {
		// Given: a connected client
		games := fakeGames{"game-1": {GameID: "game-1"}}
		hub, url := newTestServer(t, games)

		conn := dial(t, url+"/ws/game/game-1")
		readUpdate(t, conn)
		require.Equal(t, 1, hub.count("game-1"))

		// When: the client goes away
		require.NoError(t, conn.Close())

		// Then: the hub forgets it
		require.Eventually(t, func() bool {
			return hub.count("game-1") == 0
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("Game ending while the snapshot is read", func(t *testing.T) {
		// Given: a game that finishes between registration and the snapshot
		final := entity.GameUpdated{GameID: "game-1", Winner: entity.MarkX, Finished: true, Status: entity.StatusFinished, PlayerX: "p1", PlayerO: "p2"}
		games := &finishingGames{final: final}
		hub, url := newTestServer(t, games)
		games.hub = hub

		// When: a client connects
		conn := dial(t, url+"/ws/game/game-1")

		// Then: it gets the final update, not the older snapshot, and is closed
		assert.Equal(t, final, readUpdate(t, conn))
		expectClosed(t, conn)
		assert.Zero(t, hub.count("game-1"))
	})
}

func TestHub_Publish(t *testing.T) {
	for _, tc := range []struct {
		name string
		last entity.GameUpdated
	}{
		{
			name: "Finished game closes its clients",
			last: entity.GameUpdated{GameID: "game-1", Winner: entity.MarkO, Finished: true, Status: entity.StatusFinished, PlayerX: "p1", PlayerO: "p2"},
		},
		{
			name: "Abandoned game closes its clients",
			last: entity.GameUpdated{GameID: "game-1", CurrentTurn: entity.MarkX, Status: entity.StatusWaiting},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// Given: a client on game-1 and one on game-2
			games := fakeGames{
				"game-1": {GameID: "game-1", PlayerX: "p1", PlayerO: "p2"},
				"game-2": {GameID: "game-2", PlayerX: "p3"},
			}
			hub, url := newTestServer(t, games)

			conn := dial(t, url+"/ws/game/game-1")
			other := dial(t, url+"/ws/game/game-2")
			readUpdate(t, conn)
			readUpdate(t, other)

			// When: the last update of game-1 is published
			require.NoError(t, hub.Publish(context.Background(), tc.last))

			// Then: the client gets it and is closed, game-2 is untouched
			assert.Equal(t, tc.last, readUpdate(t, conn))
			expectClosed(t, conn)
			assert.Zero(t, hub.count("game-1"))
			assert.Equal(t, 1, hub.count("game-2"))
		})
	}
}
