// Package redis implements the Redis driver of the local fallback store.
// Documents are kept as raw JSON strings under a "fallback:" prefix with no
// TTL, so a copy saved during an outage survives until the next write.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     5,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS & KEYS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis cannot be reached at startup.
	ErrConnection = errors.New("fallback redis: connection failed")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("fallback redis: key cannot be empty")
)

// PrefixFallback namespaces fallback documents.
const PrefixFallback = "fallback:"

// FallbackKey returns the Redis key for a document path.
func FallbackKey(path string) string {
	return PrefixFallback + path
}

// ══════════════════════════════════════════════════════════════════════════════
// FALLBACK STORE
// ══════════════════════════════════════════════════════════════════════════════

// FallbackStore implements attendance.FallbackStore on Redis.
type FallbackStore struct {
	client *redis.Client
}

var _ attendance.FallbackStore = (*FallbackStore)(nil)

// NewFallbackStore connects to Redis and verifies the connection.
func NewFallbackStore(cfg Config) (*FallbackStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &FallbackStore{client: client}, nil
}

// NewFallbackStoreFromClient wraps an existing client.
func NewFallbackStoreFromClient(client *redis.Client) *FallbackStore {
	return &FallbackStore{client: client}
}

// Save stores data under key, replacing any previous copy.
func (s *FallbackStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if err := s.client.Set(ctx, FallbackKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("fallback redis save %s: %w", key, err)
	}
	return nil
}

// Load returns the stored copy or attendance.ErrFallbackMiss.
func (s *FallbackStore) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	data, err := s.client.Get(ctx, FallbackKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, attendance.ErrFallbackMiss
		}
		return nil, fmt.Errorf("fallback redis load %s: %w", key, err)
	}
	return data, nil
}

// Ping checks if Redis is reachable.
func (s *FallbackStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *FallbackStore) Close() error {
	return s.client.Close()
}
