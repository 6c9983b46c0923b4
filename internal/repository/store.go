package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const DefaultSweepInterval = 5 * time.Minute

// gameEntry - a game together with its own lock. Once removed is set the entry
// is no longer reachable from the store and must be treated as absent.
type gameEntry struct {
	mu      sync.Mutex
	game    *entity.Game
	removed bool
}

// Handle gives access to a game for the duration of a WithExclusive call.
type Handle struct {
	Game  *entity.Game
	evict bool
}

// Evict removes the game from the store before its lock is released.
func (that *Handle) Evict() {
	that.evict = true
}

// GameStore - in-memory registry of live games with per-game locking.
// Lock order: entry lock first, then the registry lock.
type GameStore struct {
	logger *slog.Logger

	mu    sync.RWMutex
	games map[string]*gameEntry
}

func NewGameStore(logger *slog.Logger) *GameStore {
	return &GameStore{
		logger: logger.With("component", "game_store"),
		games:  make(map[string]*gameEntry),
	}
}

func (that *GameStore) Create(id string) error {
	log := that.logger.With("method", "Create", "gameID", id)

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[id]; ok {
		log.Error("game id collision")
		return fmt.Errorf("%w: %s", apperror.ErrGameAlreadyExists, id)
	}

	that.games[id] = &gameEntry{game: entity.NewGame(id)}

	log.Info("game created")

	return nil
}

func (that *GameStore) Get(id string) (entity.GameUpdated, error) {
	var snapshot entity.GameUpdated

	err := that.WithExclusive(id, func(handle *Handle) error {
		snapshot = handle.Game.Snapshot()
		return nil
	})

	return snapshot, err
}

func (that *GameStore) ListAvailable() []entity.GameSummary {
	available := make([]entity.GameSummary, 0)

	for _, entry := range that.entries() {
		entry.mu.Lock()
		if !entry.removed && entry.game.IsAvailable() {
			available = append(available, entry.game.Summary())
		}
		entry.mu.Unlock()
	}

	return available
}

// WithExclusive runs fn while holding the lock of the game named by id.
// Operations on other games are not blocked.
func (that *GameStore) WithExclusive(id string, fn func(handle *Handle) error) error {
	that.mu.RLock()
	entry, ok := that.games[id]
	that.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// evicted while we were waiting for the lock
	if entry.removed {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	handle := &Handle{Game: entry.game}
	err := fn(handle)

	if handle.evict {
		that.removeLocked(id, entry)
	}

	return err
}

// Remove evicts a game. Removing an absent game is a no-op.
func (that *GameStore) Remove(id string) {
	err := that.WithExclusive(id, func(handle *Handle) error {
		handle.Evict()
		return nil
	})
	if err != nil {
		that.logger.Debug("remove of absent game", "gameID", id)
	}
}

// Sweep evicts every game with both seats open and returns how many were evicted.
func (that *GameStore) Sweep() int {
	log := that.logger.With("method", "Sweep")

	removed := 0
	for _, id := range that.ids() {
		// the game may vanish between listing and locking; that is fine
		_ = that.WithExclusive(id, func(handle *Handle) error {
			if handle.Game.IsEmpty() {
				handle.Evict()
				removed++
				log.Info("removed empty game", "gameID", id)
			}

			return nil
		})
	}

	return removed
}

// RunSweeper sweeps right away and then every interval until ctx is done.
func (that *GameStore) RunSweeper(ctx context.Context, interval time.Duration) {
	log := that.logger.With("method", "RunSweeper")

	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("sweeper started", "interval", interval.String())

	for {
		if removed := that.Sweep(); removed > 0 {
			log.Info("sweep finished", "removed", removed, "remaining", that.Len())
		}

		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (that *GameStore) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.games)
}

func (that *GameStore) removeLocked(id string, entry *gameEntry) {
	that.mu.Lock()
	if current, ok := that.games[id]; ok && current == entry {
		delete(that.games, id)
	}
	that.mu.Unlock()

	entry.removed = true

	that.logger.Info("game removed", "gameID", id)
}

func (that *GameStore) entries() []*gameEntry {
	that.mu.RLock()
	defer that.mu.RUnlock()

	entries := make([]*gameEntry, 0, len(that.games))
	for _, entry := range that.games {
		entries = append(entries, entry)
	}

	return entries
}

func (that *GameStore) ids() []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	ids := make([]string, 0, len(that.games))
	for id := range that.games {
		ids = append(ids, id)
	}

	return ids
}
