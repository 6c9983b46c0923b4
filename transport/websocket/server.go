package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	sendBufferSize = 16
)

type gameReader interface {
	Get(id string) (entity.GameUpdated, error)
}

// Hub - pushes game updates to the websocket clients watching each game.
type Hub struct {
	logger   *slog.Logger
	games    gameReader
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	hub    *Hub
	gameID string
	conn   *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
}

func NewHub(logger *slog.Logger, games gameReader) *Hub {
	return &Hub{
		logger: logger.With("component", "websocket_hub"),
		games:  games,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// ServeGame - upgrades the connection, sends the current snapshot and then every update of the game.
func (that *Hub) ServeGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")
	log := that.logger.With("method", "ServeGame", "gameID", gameID)

	// registered before the snapshot is read: an update published from here on
	// is queued for the client, and the snapshot is never older than it
	c := &client{
		hub:    that,
		gameID: gameID,
		send:   make(chan []byte, sendBufferSize),
	}
	that.register(c)

	snapshot, err := that.games.Get(gameID)
	if errors.Is(err, apperror.ErrGameNotFound) {
		that.unregister(c)
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	if err != nil {
		that.unregister(c)
		log.Error("failed to get game", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		that.unregister(c)
		log.Error("failed to marshal game", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		that.unregister(c)
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	c.conn = conn

	// a client already closed by the game's last update gets that update, not the older snapshot
	if !that.deliver(c, snapshotJSON) {
		log.Info("game ended before the snapshot was sent")
	}

	go c.writePump()
	go c.readPump()

	log.Info("websocket client connected")
}

// Publish - sends the update to every client of the game. Slow clients miss updates instead of blocking.
// The update that ends a game, by a finish or by both players leaving, is the last one: its clients are closed after it.
func (that *Hub) Publish(_ context.Context, event entity.GameUpdated) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal game update: %w", err)
	}

	if isLastUpdate(event) {
		that.closeGame(event.GameID, eventJSON)
		return nil
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for c := range that.clients[event.GameID] {
		that.trySend(c, eventJSON)
	}

	return nil
}

func isLastUpdate(event entity.GameUpdated) bool {
	return event.Finished || (event.PlayerX == "" && event.PlayerO == "")
}

func (that *Hub) closeGame(gameID string, message []byte) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for c := range that.clients[gameID] {
		that.trySend(c, message)
		c.closeSend()
	}
	delete(that.clients, gameID)
}

// deliver queues a message for a client that is still registered.
func (that *Hub) deliver(c *client, message []byte) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if _, ok := that.clients[c.gameID][c]; !ok {
		return false
	}

	that.trySend(c, message)

	return true
}

// trySend is called with the hub lock held; registered clients have an open send channel.
func (that *Hub) trySend(c *client, message []byte) {
	select {
	case c.send <- message:
	default:
		that.logger.Warn("client send buffer is full, dropping update", "gameID", c.gameID)
	}
}

// Close disconnects every client.
func (that *Hub) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for gameID, clients := range that.clients {
		for c := range clients {
			c.closeSend()
		}
		delete(that.clients, gameID)
	}

	that.logger.Info("websocket hub closed")
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.clients[c.gameID] == nil {
		that.clients[c.gameID] = make(map[*client]struct{})
	}
	that.clients[c.gameID][c] = struct{}{}
}

func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	clients, ok := that.clients[c.gameID]
	if !ok {
		return
	}

	if _, ok = clients[c]; !ok {
		return
	}

	delete(clients, c)
	c.closeSend()

	if len(clients) == 0 {
		delete(that.clients, c.gameID)
	}
}

func (that *Hub) count(gameID string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients[gameID])
}

// closeSend is called with the hub lock held.
func (that *client) closeSend() {
	that.closeOnce.Do(func() {
		close(that.send)
	})
}

// readPump discards client frames; it only keeps the read deadline moving and notices the disconnect.
func (that *client) readPump() {
	defer func() {
		that.hub.unregister(that)
		_ = that.conn.Close()
	}()

	that.conn.SetReadLimit(512)
	_ = that.conn.SetReadDeadline(time.Now().Add(pongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := that.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				that.hub.logger.Error("websocket read error", "gameID", that.gameID, "error", err)
			}
			return
		}
	}
}

func (that *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case message, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
