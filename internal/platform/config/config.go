// Package config loads process configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures every tunable the server reads at startup.
type Config struct {
	Addr          string `env:"PUNCHGATE_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"punchgate"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"punchgate-api"`

	// MongoURI points at the cluster hosting the per-tenant databases and the
	// shared directory database. Empty means in-memory stores (dev mode).
	MongoURI    string `env:"MONGO_URI"`
	DirectoryDB string `env:"DIRECTORY_DB" envDefault:"punchgate_directory"`

	// PostgresURL backs the global identity store. Empty means in-memory.
	PostgresURL string `env:"POSTGRES_URL"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"punchgate.audit"`

	RequireDatabaseUser bool `env:"REQUIRE_DATABASE_USER" envDefault:"true"`
	RequireTenant       bool `env:"REQUIRE_TENANT" envDefault:"true"`
}

// RedisConfig configures the session liveness store.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
