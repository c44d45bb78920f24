// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MustLoad loads configuration from environment variables and .env file,
// panicking on missing required values.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load()
	env.Must(cfg, env.Parse(cfg))
}

// Load loads configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load()
	return env.Parse(cfg)
}

// Config holds the full server configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PoolCapacity   int    `env:"POOL_CAPACITY" envDefault:"1048576"`
	RetireRingSize uint64 `env:"RETIRE_RING_SIZE" envDefault:"262144"`

	EpochInterval    time.Duration `env:"EPOCH_INTERVAL" envDefault:"2s"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1m"`
	SnapshotDir      string        `env:"SNAPSHOT_DIR" envDefault:"./data/snapshot"`

	WAL   WALConfig   `envPrefix:"WAL_"`
	Kafka KafkaConfig `envPrefix:"KAFKA_"`
}

// WALConfig covers the request journal and the event outbox.
type WALConfig struct {
	EntryDir    string `env:"ENTRY_DIR" envDefault:"./data/wal_entry"`
	OutboxDir   string `env:"OUTBOX_DIR" envDefault:"./data/wal_exit"`
	SegmentSize int64  `env:"SEGMENT_SIZE" envDefault:"2097152"`
}

// KafkaConfig holds broker addresses and topics. Leaving Brokers empty
// disables the ingestion and broadcast jobs.
type KafkaConfig struct {
	Brokers       []string      `env:"BROKERS"`
	OrdersTopic   string        `env:"ORDERS_TOPIC" envDefault:"orders"`
	EventsTopic   string        `env:"EVENTS_TOPIC" envDefault:"book-events"`
	GroupID       string        `env:"GROUP_ID" envDefault:"matcher"`
	DrainInterval time.Duration `env:"DRAIN_INTERVAL" envDefault:"250ms"`
}

// Enabled reports whether Kafka wiring is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }
