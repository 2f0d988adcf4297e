// README: Redis client initialization for the access cache and order pub/sub.
package infra

import "github.com/redis/go-redis/v9"

// NewRedis returns nil when addr is empty; callers fall back to the no-op cache
// and the in-process transport.
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
