package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const (
	DefaultBufferSize = 256

	drainTimeout = 5 * time.Second
)

// Publisher delivers an update to one downstream: a broker, the websocket feed, etc.
type Publisher interface {
	Publish(ctx context.Context, event entity.GameUpdated) error
}

// Dispatcher - outbound event queue. Publish never blocks; a single worker
// delivers events to every publisher in the order they were enqueued.
type Dispatcher struct {
	logger     *slog.Logger
	publishers []Publisher

	events chan entity.GameUpdated
}

func NewDispatcher(logger *slog.Logger, bufferSize int, publishers ...Publisher) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Dispatcher{
		logger:     logger.With("component", "dispatcher"),
		publishers: publishers,
		events:     make(chan entity.GameUpdated, bufferSize),
	}
}

// Publish enqueues the event. When the queue is full the event is dropped.
func (that *Dispatcher) Publish(event entity.GameUpdated) {
	select {
	case that.events <- event:
	default:
		that.logger.Warn("event queue is full, dropping update", "gameID", event.GameID)
	}
}

// Run delivers events until ctx is done, then drains what is left in the queue.
func (that *Dispatcher) Run(ctx context.Context) {
	log := that.logger.With("method", "Run")

	log.Info("dispatcher started", "publishers", len(that.publishers))

	for {
		select {
		case event := <-that.events:
			that.deliver(ctx, event)
		case <-ctx.Done():
			that.drain()
			log.Info("dispatcher stopped")
			return
		}
	}
}

func (that *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-that.events:
			that.deliver(ctx, event)
		default:
			return
		}
	}
}

func (that *Dispatcher) deliver(ctx context.Context, event entity.GameUpdated) {
	for _, publisher := range that.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			that.logger.Error("failed to publish game update", "gameID", event.GameID, "error", err)
		}
	}
}
