package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const (
	reconnectWait = time.Second
	pingInterval  = 20 * time.Second

	drainTimeout = 5 * time.Second
	drainPoll    = 10 * time.Millisecond
)

var ErrDrainTimeout = errors.New("subscription drain timed out")

type moveHandler interface {
	HandleMoveCommand(ctx context.Context, cmd entity.MoveCommand)
}

// Connect opens a connection that keeps reconnecting for as long as the process runs.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("tictactoe-sessions"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.PingInterval(pingInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return conn, nil
}

// Client - nats broker driver. Move commands are load balanced across the queue group.
type Client struct {
	logger *slog.Logger
	conn   *nats.Conn

	moveSubject   string
	queueGroup    string
	updateSubject string
}

func New(logger *slog.Logger, conn *nats.Conn, moveSubject, queueGroup, updateSubject string) *Client {
	return &Client{
		logger:        logger.With("component", "nats_broker"),
		conn:          conn,
		moveSubject:   moveSubject,
		queueGroup:    queueGroup,
		updateSubject: updateSubject,
	}
}

// Publish - publishes the game update on the update subject.
func (that *Client) Publish(_ context.Context, event entity.GameUpdated) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal game update: %w", err)
	}

	if err = that.conn.Publish(that.updateSubject, eventJSON); err != nil {
		return fmt.Errorf("failed to publish game update: %w", err)
	}

	return nil
}

// EnqueueMove - publishes a move command on the move subject.
func (that *Client) EnqueueMove(_ context.Context, cmd entity.MoveCommand) error {
	cmdJSON, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal move command: %w", err)
	}

	if err = that.conn.Publish(that.moveSubject, cmdJSON); err != nil {
		return fmt.Errorf("failed to enqueue move command: %w", err)
	}

	return nil
}

// Consume - handles move commands until ctx is done, then drains the subscription.
// It returns once every move received before the drain has been handled.
func (that *Client) Consume(ctx context.Context, handler moveHandler) error {
	log := that.logger.With("method", "Consume", "subject", that.moveSubject, "queueGroup", that.queueGroup)

	sub, err := that.conn.QueueSubscribe(that.moveSubject, that.queueGroup, func(msg *nats.Msg) {
		var cmd entity.MoveCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Error("failed to unmarshal move command", "error", err)
			return
		}

		handler.HandleMoveCommand(ctx, cmd)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to move commands: %w", err)
	}

	// the subscription is registered once the server has seen it
	if err = that.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	log.Info("consuming move commands")

	<-ctx.Done()

	if err = sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}

	if err = waitDrained(sub, drainTimeout); err != nil {
		return err
	}

	log.Info("consumer stopped")

	return nil
}

// waitDrained blocks until the drained subscription has run its last callback.
func waitDrained(sub *nats.Subscription, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for sub.IsValid() {
		if time.Now().After(deadline) {
			return ErrDrainTimeout
		}

		time.Sleep(drainPoll)
	}

	return nil
}
