// README: Redis client initialization for the dispatch queues.
package infra

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis keeps timeouts short: queue operations fail fast when Redis is unreachable.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   -1,
	})
}
