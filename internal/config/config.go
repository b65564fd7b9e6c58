package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Substrate selection values.
const (
	SubstrateBadger   = "badger"
	SubstratePostgres = "postgres"
)

// Config holds all engine configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Graph engine settings
	Graph GraphConfig

	// Substrate selection and settings
	Substrate string `env:"SUBSTRATE" envDefault:"badger"`
	Badger    BadgerConfig
	Database  DatabaseConfig
}

// GraphConfig holds the transaction engine knobs.
type GraphConfig struct {
	// ShardingThreshold is the instance count at which a type gets a new
	// shard.
	ShardingThreshold int64 `env:"SHARDING_THRESHOLD" envDefault:"10000"`

	// OntologyCacheTimeoutNormal is the write-expiry of the shared
	// ontology cache for engines opened without Options.BatchLoading,
	// whatever the kind of each transaction.
	OntologyCacheTimeoutNormal time.Duration `env:"ONTOLOGY_CACHE_TIMEOUT_MS_NORMAL" envDefault:"600000ms"`

	// OntologyCacheTimeoutBatch is the write-expiry for engines opened with
	// Options.BatchLoading.
	OntologyCacheTimeoutBatch time.Duration `env:"ONTOLOGY_CACHE_TIMEOUT_MS_BATCH" envDefault:"1800000ms"`

	// OntologyCacheMaxEntries bounds the shared ontology cache.
	OntologyCacheMaxEntries int `env:"ONTOLOGY_CACHE_MAX_ENTRIES" envDefault:"1000"`

	// EngineURL is the destination for commit-log submission, or
	// IN_MEMORY to keep post-processing in process.
	EngineURL string `env:"ENGINE_URL" envDefault:"IN_MEMORY"`
}

// BadgerConfig holds settings for the embedded substrate.
type BadgerConfig struct {
	Dir        string `env:"BADGER_DIR" envDefault:"./data"`
	InMemory   bool   `env:"BADGER_IN_MEMORY" envDefault:"false"`
	SyncWrites bool   `env:"BADGER_SYNC_WRITES" envDefault:"true"`
}

// DatabaseConfig holds PostgreSQL connection settings for the SQL substrate
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"lattice"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"lattice"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Graph.ShardingThreshold <= 0 {
		return nil, fmt.Errorf("SHARDING_THRESHOLD must be positive, got %d", cfg.Graph.ShardingThreshold)
	}
	if cfg.Substrate != SubstrateBadger && cfg.Substrate != SubstratePostgres {
		return nil, fmt.Errorf("unknown SUBSTRATE %q", cfg.Substrate)
	}
	return cfg, nil
}
