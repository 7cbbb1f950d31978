package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// limiterDatabase keeps rate limiter counters apart from cached data (DB 0).
const limiterDatabase = 1

// NewLimiterStorage builds a fiber.Storage on the same server as client so the
// rate limiter counts across instances.
func NewLimiterStorage(client *redis.Client) fiber.Storage {
	host, port := hostPort(client.Options().Addr)
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: client.Options().Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}

func hostPort(addr string) (string, int) {
	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	return host, port
}
