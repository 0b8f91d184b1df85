package web

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
)

const rateLimitWindow = time.Minute

// newAuthLimiter limits form posts that check passwords, per client IP.
// Counters live in Redis when storage is given, otherwise in memory.
func newAuthLimiter(limit int, storage fiber.Storage) fiber.Handler {
	cfg := limiter.Config{
		Max:        limit,
		Expiration: rateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "task-tracker:auth-limit:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ActionResult{
				Success: false,
				Error:   "too many attempts, please try again later",
			})
		},
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}

// newRedisStorage connects the limiter storage to addr. It panics when the
// server cannot be reached.
func newRedisStorage(addr, password string) *fiberredis.Storage {
	host, port := parseRedisAddr(addr)
	return fiberredis.New(fiberredis.Config{
		Host:     host,
		Port:     port,
		Password: password,
	})
}

func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
