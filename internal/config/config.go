package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds the process configuration read from the environment.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// StorageDriver selects the persistence backend: "postgres" (Postgres + Mongo)
	// or "memory" for local runs without databases.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:"host=localhost user=user password=password dbname=astrochat port=5432 sslmode=disable"`
	MongoURL      string `envconfig:"MONGO_URL" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"astrochat"`

	// Redis is optional; an empty address disables the sweep lease.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6380"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"defaultsecret"`

	// SweepInterval of 0 disables the background sweeper.
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	SendRateLimit  float64       `envconfig:"SEND_RATE_LIMIT" default:"5"`
	SendRateBurst  int           `envconfig:"SEND_RATE_BURST" default:"10"`
	AllowedOrigins []string      `envconfig:"WS_ALLOWED_ORIGINS"`

	// SeedUsers ("id:name:role", comma separated) populates the memory driver.
	SeedUsers []string `envconfig:"SEED_USERS"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config error: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config error: JWT_SECRET must not be empty")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("config error: SWEEP_INTERVAL must not be negative")
	}
	return nil
}
