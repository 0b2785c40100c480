// Package config loads the dispatch engine's environment-driven
// configuration, grounded on the teacher's envconfig usage.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ProviderLimit is the per-provider token-bucket configuration of spec §4.2.
type ProviderLimit struct {
	BucketSize   int
	RefillPerMin int
}

// BreakerConfig is the per-provider circuit breaker configuration of spec
// §4.3.
type BreakerConfig struct {
	FailureThreshold  int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	Timeout           time.Duration `envconfig:"BREAKER_TIMEOUT" default:"60s"`
	RecoveryThreshold int           `envconfig:"BREAKER_RECOVERY_THRESHOLD" default:"3"`
}

// Config is the complete set of options recognized by the dispatch core
// (spec §6).
type Config struct {
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"10"`
	BatchSize         int `envconfig:"BATCH_SIZE" default:"50"`

	RetryAttempts     int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	DeadLetterTTL     time.Duration `envconfig:"DEAD_LETTER_TTL" default:"168h"`
	DedupTTL          time.Duration `envconfig:"DEDUP_TTL" default:"1h"`
	RetryBodyTTL      time.Duration `envconfig:"RETRY_BODY_TTL" default:"2h"`
	ScheduledBodyTTL  time.Duration `envconfig:"SCHEDULED_BODY_TTL" default:"24h"`
	SchedulerInterval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"60s"`
	StaleClaimMinIdle time.Duration `envconfig:"STALE_CLAIM_MIN_IDLE" default:"5m"`

	ProviderSendTimeout time.Duration `envconfig:"PROVIDER_SEND_TIMEOUT" default:"30s"`

	Breaker BreakerConfig

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`

	IntakeAddr string `envconfig:"INTAKE_ADDR" default:":8080"`
}

// Load reads configuration from the environment, applying the defaults
// named throughout spec §6.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// RedisURL builds the connection string consumed by go-redis.
func (c *Config) RedisURL() string {
	if c.RedisPassword != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", c.RedisPassword, c.RedisHost, c.RedisPort, c.RedisDB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", c.RedisHost, c.RedisPort, c.RedisDB)
}

// DefaultProviderLimits mirrors the rate limits the source system shipped
// with, keyed by provider name (spec §4.2, grounded on
// original_source/config/email_config.py's rate_limits default).
func DefaultProviderLimits() map[string]ProviderLimit {
	return map[string]ProviderLimit{
		"sendgrid": {BucketSize: 500, RefillPerMin: 100},
		"mailgun":  {BucketSize: 1000, RefillPerMin: 200},
		"aws_ses":  {BucketSize: 200, RefillPerMin: 50},
		"smtp":     {BucketSize: 100, RefillPerMin: 20},
	}
}
