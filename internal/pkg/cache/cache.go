package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PrepVault/internal/pkg/env"
)

// Config describes the Redis/Dragonfly connection.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ConfigFromEnv reads CACHE_* settings.
func ConfigFromEnv() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnv("CACHE_PORT", "6379"),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetInt("CACHE_DB", 0),
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewClient connects to the cache server. An unreachable server is logged,
// not fatal; callers fall back to the database on cache errors.
func NewClient(ctx context.Context, cfg Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("Could not connect to cache at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("Successfully connected to cache: %s", pong)
	}
	return client
}

// Store is a string key/value view over a Redis client with a key prefix.
type Store struct {
	client redis.Cmdable
	prefix string
}

func NewStore(client redis.Cmdable, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get retrieves a value from the cache by key
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, s.key(key)).Result()
}

// Set stores a value in the cache with the given key and expiration time
func (s *Store) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, expiration).Err()
}
