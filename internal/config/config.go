package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BrokerRedis = "redis"
	BrokerNATS  = "nats"
	BrokerNone  = "none"
)

var ErrUnknownBroker = errors.New("unknown broker driver")

type Config struct {
	LogLevel      string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort      string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"5m"`
	Events        Events        `yaml:"events"`
	Broker        Broker        `yaml:"broker"`
	Redis         Redis         `yaml:"redis"`
	NATS          NATS          `yaml:"nats"`
}

type Events struct {
	BufferSize int `yaml:"buffer-size" env:"EVENTS_BUFFER_SIZE" env-default:"256"`
}

type Broker struct {
	Driver string `yaml:"driver" env:"BROKER_DRIVER" env-default:"redis"`
}

type Redis struct {
	Host          string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port          string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	MoveQueue     string `yaml:"move-queue" env:"REDIS_MOVE_QUEUE" env-default:"make-move-queue"`
	UpdateChannel string `yaml:"update-channel" env:"REDIS_UPDATE_CHANNEL" env-default:"game-updated"`
}

type NATS struct {
	URL           string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
	MoveSubject   string `yaml:"move-subject" env:"NATS_MOVE_SUBJECT" env-default:"tictactoe.make-move"`
	QueueGroup    string `yaml:"queue-group" env:"NATS_QUEUE_GROUP" env-default:"make-move-queue"`
	UpdateSubject string `yaml:"update-subject" env:"NATS_UPDATE_SUBJECT" env-default:"tictactoe.game-updated"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) validate() error {
	switch that.Broker.Driver {
	case BrokerRedis, BrokerNATS, BrokerNone:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBroker, that.Broker.Driver)
	}
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
