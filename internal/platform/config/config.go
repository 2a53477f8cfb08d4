package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Artifact backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config is the full runtime configuration, read once at startup.
type Config struct {
	Server    Server
	Artifacts ArtifactConfig
	Redis     RedisConfig
	Training  TrainingConfig
	Retrain   RetrainConfig

	// DatabaseURL enables the Postgres history store when set.
	DatabaseURL string
	LogLevel    string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// ArtifactConfig selects where trained model sets are persisted.
type ArtifactConfig struct {
	Backend    string
	ModelsDir  string
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string
	AWSRegion  string
}

// RedisConfig configures the optional prediction cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type TrainingConfig struct {
	Samples int
	Seed    uint64
}

type RetrainConfig struct {
	WaitTimeout time.Duration
	QueueSize   int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	p := &parser{}

	port := p.int("PORT", 5001)
	cfg := Config{
		Server: Server{Addr: fmt.Sprintf(":%d", port)},
		Artifacts: ArtifactConfig{
			Backend:    envOr("ARTIFACT_BACKEND", BackendFS),
			ModelsDir:  envOr("MODELS_DIR", "saved_models"),
			S3Bucket:   os.Getenv("ARTIFACT_S3_BUCKET"),
			S3Prefix:   envOr("ARTIFACT_S3_PREFIX", "saved_models"),
			S3Endpoint: os.Getenv("ARTIFACT_S3_ENDPOINT"),
			AWSRegion:  envOr("AWS_REGION", "us-east-1"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     p.duration("PREDICTION_CACHE_TTL", 10*time.Minute),
		},
		Training: TrainingConfig{
			Samples: p.int("TRAINING_SAMPLES", 5000),
			Seed:    p.uint("TRAINING_SEED", 42),
		},
		Retrain: RetrainConfig{
			WaitTimeout: p.duration("RETRAIN_WAIT_TIMEOUT", 2*time.Minute),
			QueueSize:   p.int("RETRAIN_QUEUE_SIZE", 8),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Artifacts.Backend {
	case BackendFS:
	case BackendS3:
		if c.Artifacts.S3Bucket == "" {
			return fmt.Errorf("ARTIFACT_S3_BUCKET is required when ARTIFACT_BACKEND=s3")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be %q or %q, got %q", BackendFS, BackendS3, c.Artifacts.Backend)
	}
	if c.Training.Samples < 100 {
		return fmt.Errorf("TRAINING_SAMPLES must be at least 100, got %d", c.Training.Samples)
	}
	if c.Retrain.QueueSize < 1 {
		return fmt.Errorf("RETRAIN_QUEUE_SIZE must be positive, got %d", c.Retrain.QueueSize)
	}
	if c.Retrain.WaitTimeout <= 0 {
		return fmt.Errorf("RETRAIN_WAIT_TIMEOUT must be positive, got %s", c.Retrain.WaitTimeout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first parse error so FromEnv reads as a flat list.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" || p.err != nil {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return fallback
	}
	return v
}

func (p *parser) uint(key string, fallback uint64) uint64 {
	raw := os.Getenv(key)
	if raw == "" || p.err != nil {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" || p.err != nil {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return fallback
	}
	return v
}
