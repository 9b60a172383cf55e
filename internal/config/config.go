// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/vault"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SecretKey           []byte
	ListenAddr          string
	DBPath              string
	AdapterTimeout      time.Duration
	DispatchInterval    time.Duration
	DispatchConcurrency int
	PlatformsFile       string
	Kafka               KafkaConfig
	Worker              WorkerConfig
	ObjectStore         ObjectStoreConfig
}

// KafkaConfig configures the durable job queue transport.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Enabled reports whether any broker address was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// WorkerConfig configures the background worker pool.
type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	BaseDelay   time.Duration
	Retention   model.RetentionPolicy
}

// ObjectStoreConfig configures the S3-compatible media store.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an endpoint was configured.
func (o ObjectStoreConfig) Enabled() bool {
	return o.Endpoint != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// CREATORHUB_SECRET_KEY is required and must be 64 hex characters (32 bytes);
// a missing or malformed key is a fatal model.ErrConfig, never replaced by a default.
// Optional variables with defaults: CREATORHUB_LISTEN_ADDR (127.0.0.1:8080),
// CREATORHUB_DB_PATH (creatorhub.db), CREATORHUB_ADAPTER_TIMEOUT (30s),
// CREATORHUB_DISPATCH_INTERVAL (5s), CREATORHUB_DISPATCH_CONCURRENCY (4).
func Load() (*Config, error) {
	rawKey, ok := os.LookupEnv("CREATORHUB_SECRET_KEY")
	if !ok || strings.TrimSpace(rawKey) == "" {
		return nil, fmt.Errorf("%w: CREATORHUB_SECRET_KEY is required", model.ErrConfig)
	}
	key, err := vault.ParseKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("CREATORHUB_SECRET_KEY: %w", err)
	}

	cfg := &Config{
		SecretKey:     key,
		ListenAddr:    stringEnv("CREATORHUB_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:        stringEnv("CREATORHUB_DB_PATH", "creatorhub.db"),
		PlatformsFile: os.Getenv("CREATORHUB_PLATFORMS_FILE"),
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("CREATORHUB_KAFKA_BROKERS")),
			Topic:   stringEnv("CREATORHUB_KAFKA_TOPIC", "creatorhub-jobs"),
			GroupID: stringEnv("CREATORHUB_KAFKA_GROUP", "creatorhub-workers"),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  os.Getenv("CREATORHUB_S3_ENDPOINT"),
			AccessKey: os.Getenv("CREATORHUB_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("CREATORHUB_S3_SECRET_KEY"),
			Bucket:    stringEnv("CREATORHUB_S3_BUCKET", "creatorhub-media"),
		},
	}

	if cfg.AdapterTimeout, err = durationEnv("CREATORHUB_ADAPTER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchInterval, err = durationEnv("CREATORHUB_DISPATCH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchConcurrency, err = positiveIntEnv("CREATORHUB_DISPATCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.Worker.Concurrency, err = positiveIntEnv("CREATORHUB_WORKER_CONCURRENCY", 2); err != nil {
		return nil, err
	}
	if cfg.Worker.MaxAttempts, err = positiveIntEnv("CREATORHUB_JOB_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Worker.BaseDelay, err = durationEnv("CREATORHUB_JOB_BASE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Worker.Retention.CompletedMaxAge, err = durationEnv("CREATORHUB_JOB_KEEP_COMPLETED_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Worker.Retention.CompletedMaxCount, err = positiveIntEnv("CREATORHUB_JOB_KEEP_COMPLETED_COUNT", 1000); err != nil {
		return nil, err
	}
	if cfg.Worker.Retention.FailedMaxAge, err = durationEnv("CREATORHUB_JOB_KEEP_FAILED_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("CREATORHUB_S3_USE_SSL"); ok && v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CREATORHUB_S3_USE_SSL has invalid boolean %q: %w", v, err)
		}
		cfg.ObjectStore.UseSSL = useSSL
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return parsed, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", key, parsed)
	}
	return parsed, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
