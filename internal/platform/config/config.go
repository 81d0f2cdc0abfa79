// Package config builds engine configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full engine configuration.
type Config struct {
	Addr string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	RateLimit RateLimitConfig
	Votes     VotePolicy

	// DrainTimeout bounds how long finalize waits for in-flight votes.
	DrainTimeout time.Duration

	// JWTSigningKey validates organizer tokens on the admin surface.
	JWTSigningKey string

	// FingerprintKey keys the IP fingerprint hash. Rotating it invalidates
	// rate-limit continuity but never stored votes.
	FingerprintKey string
}

// PostgresConfig configures the primary store. Empty DSN selects the
// in-memory stores (tests, local development).
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the shared rate-limit and leaderboard cache backend.
// Empty URL selects the in-memory equivalents.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the event publisher. Empty brokers keep events on
// the in-process dispatcher only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig holds the sliding-window thresholds FraudGuard enforces,
// independently per voter ID and per IP fingerprint.
type RateLimitConfig struct {
	VoterLimit       int
	FingerprintLimit int
	Window           time.Duration
}

// VotePolicy selects between the default one-vote-per-participant rule and
// the stricter one-vote-total-per-competition variant. Explicit, never
// assumed.
type VotePolicy struct {
	SingleVotePerCompetition bool
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr: getString("STAGEVOTE_ADDR", ":8080"),
		Postgres: PostgresConfig{
			DSN:             os.Getenv("STAGEVOTE_POSTGRES_DSN"),
			MaxOpenConns:    getInt("STAGEVOTE_POSTGRES_MAX_OPEN", 20),
			MaxIdleConns:    getInt("STAGEVOTE_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: getDuration("STAGEVOTE_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("STAGEVOTE_REDIS_URL"),
			PoolSize:     getInt("STAGEVOTE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("STAGEVOTE_REDIS_MIN_IDLE", 2),
			DialTimeout:  getDuration("STAGEVOTE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("STAGEVOTE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("STAGEVOTE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("STAGEVOTE_KAFKA_BROKERS")),
			Topic:   getString("STAGEVOTE_KAFKA_TOPIC", "stagevote.events"),
		},
		RateLimit: RateLimitConfig{
			VoterLimit:       getInt("STAGEVOTE_RATE_VOTER_LIMIT", 30),
			FingerprintLimit: getInt("STAGEVOTE_RATE_FINGERPRINT_LIMIT", 60),
			Window:           getDuration("STAGEVOTE_RATE_WINDOW", time.Minute),
		},
		Votes: VotePolicy{
			SingleVotePerCompetition: os.Getenv("STAGEVOTE_SINGLE_VOTE_PER_COMPETITION") == "true",
		},
		DrainTimeout:   getDuration("STAGEVOTE_DRAIN_TIMEOUT", 10*time.Second),
		JWTSigningKey:  getString("STAGEVOTE_JWT_SIGNING_KEY", "dev-secret-change-in-production"),
		FingerprintKey: getString("STAGEVOTE_FINGERPRINT_KEY", "dev-fingerprint-key"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
