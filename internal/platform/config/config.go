package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	DatabaseURL   string
	Redis         RedisConfig
	KafkaBrokers  string
	NoteMaxLen    int
}

// RedisConfig holds connection tuning for the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultNoteMaxLen bounds private note length when TANDEM_NOTE_MAX_LEN is unset.
const DefaultNoteMaxLen = 500

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TANDEM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	noteMaxLen := DefaultNoteMaxLen
	if raw := os.Getenv("TANDEM_NOTE_MAX_LEN"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			noteMaxLen = parsed
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		KafkaBrokers:  os.Getenv("KAFKA_BROKERS"),
		NoteMaxLen:    noteMaxLen,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
