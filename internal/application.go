package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/config"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/publisher"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/transport/nats"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-sessions/transport/rest"
	"github.com/rocketscienceinc/tictactoe-sessions/transport/websocket"
	"golang.org/x/sync/errgroup"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// broker - the configured broker driver: publishes updates and feeds move commands to the manager.
type broker struct {
	publisher publisher.Publisher
	consume   func(ctx context.Context, manager *usecase.GameManager) error
	close     func()
}

// RunApp - runs the application until ctx is cancelled or a signal arrives.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brk, err := newBroker(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer brk.close()

	store := repository.NewGameStore(logger)
	hub := websocket.NewHub(logger, store)
	defer hub.Close()

	publishers := []publisher.Publisher{hub}
	if brk.publisher != nil {
		publishers = append(publishers, brk.publisher)
	}

	dispatcher := publisher.NewDispatcher(logger, conf.Events.BufferSize, publishers...)
	gameController := tictactoe.NewGameController(logger, store, dispatcher)
	gameManager := usecase.NewGameManager(logger, store, gameController)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", rest.NewPingHandler().PingHandler)
	mux.HandleFunc("GET /ws/game/{gameID}", hub.ServeGame)
	rest.NewGameHandler(logger, gameManager).Register(mux)

	// the dispatcher outlives every producer of events, so moves applied
	// during shutdown still have their updates delivered
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		store.RunSweeper(ctx, conf.SweepInterval)
		return nil
	})

	if brk.consume != nil {
		group.Go(func() error {
			if consumeErr := brk.consume(ctx, gameManager); consumeErr != nil {
				return fmt.Errorf("broker consumer error: %w", consumeErr)
			}
			return nil
		})
	}

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, mux); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	err = group.Wait()

	stopDispatch()
	<-dispatchDone

	if err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

func newBroker(ctx context.Context, logger *slog.Logger, conf *config.Config) (*broker, error) {
	log := logger.With("component", "app", "broker", conf.Broker.Driver)

	switch conf.Broker.Driver {
	case config.BrokerRedis:
		if conf.Redis.Host == "" {
			return nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		client := redis.New(logger, redisStorage, conf.Redis.MoveQueue, conf.Redis.UpdateChannel)

		return &broker{
			publisher: client,
			consume: func(ctx context.Context, manager *usecase.GameManager) error {
				return client.Consume(ctx, manager)
			},
			close: func() {
				if err := redisStorage.Close(); err != nil {
					log.Error("could not close redis storage", "error", err)
				}
			},
		}, nil
	case config.BrokerNATS:
		conn, err := nats.Connect(conf.NATS.URL)
		if err != nil {
			return nil, err
		}

		client := nats.New(logger, conn, conf.NATS.MoveSubject, conf.NATS.QueueGroup, conf.NATS.UpdateSubject)

		return &broker{
			publisher: client,
			consume: func(ctx context.Context, manager *usecase.GameManager) error {
				return client.Consume(ctx, manager)
			},
			close: conn.Close,
		}, nil
	case config.BrokerNone:
		log.Info("no broker configured, moves are accepted over HTTP only")
		return &broker{close: func() {}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBroker, conf.Broker.Driver)
	}
}
