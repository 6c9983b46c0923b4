package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const popTimeout = time.Second

type moveHandler interface {
	HandleMoveCommand(ctx context.Context, cmd entity.MoveCommand)
}

// Client - redis broker driver: move commands come from a list, updates go to a pub/sub channel.
type Client struct {
	logger *slog.Logger
	client *redis.Client

	moveQueue     string
	updateChannel string
}

func New(logger *slog.Logger, client *redis.Client, moveQueue, updateChannel string) *Client {
	return &Client{
		logger:        logger.With("component", "redis_broker"),
		client:        client,
		moveQueue:     moveQueue,
		updateChannel: updateChannel,
	}
}

// Publish - publishes the game update on the update channel.
func (that *Client) Publish(ctx context.Context, event entity.GameUpdated) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal game update: %w", err)
	}

	if err = that.client.Publish(ctx, that.updateChannel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish game update: %w", err)
	}

	return nil
}

// EnqueueMove - pushes a move command to the tail of the move queue.
func (that *Client) EnqueueMove(ctx context.Context, cmd entity.MoveCommand) error {
	cmdJSON, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal move command: %w", err)
	}

	if err = that.client.RPush(ctx, that.moveQueue, cmdJSON).Err(); err != nil {
		return fmt.Errorf("failed to enqueue move command: %w", err)
	}

	return nil
}

// Consume - pops move commands until ctx is done.
func (that *Client) Consume(ctx context.Context, handler moveHandler) error {
	log := that.logger.With("method", "Consume", "queue", that.moveQueue)

	log.Info("consuming move commands")

	for {
		if ctx.Err() != nil {
			log.Info("consumer stopped")
			return nil
		}

		result, err := that.client.BLPop(ctx, popTimeout, that.moveQueue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return nil
			}

			return fmt.Errorf("failed to pop move command: %w", err)
		}

		// BLPOP replies with the key followed by the value
		var cmd entity.MoveCommand
		if err = json.Unmarshal([]byte(result[1]), &cmd); err != nil {
			log.Error("failed to unmarshal move command", "error", err)
			continue
		}

		handler.HandleMoveCommand(ctx, cmd)
	}
}
