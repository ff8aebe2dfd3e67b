package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// TwoTier is a TTL cache with a remote Redis tier and an in-process local
// tier. Reads prefer the remote tier and fall back to local when Redis is
// unavailable; writes go to both. The local tier keeps the quota endpoints
// working when Redis is down.
type TwoTier struct {
	remote *redis.Client
	logger *logrus.Logger

	mu    sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewTwoTier creates a cache. remote may be nil, leaving only the local tier.
func NewTwoTier(remote *redis.Client, logger *logrus.Logger) *TwoTier {
	return &TwoTier{
		remote: remote,
		logger: logger,
		local:  make(map[string]localEntry),
	}
}

// Get unmarshals the cached value for key into dest. The second return is
// false on a miss (either tier).
func (c *TwoTier) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.remote != nil {
		data, err := c.remote.Get(ctx, key).Result()
		if err == nil {
			return true, json.Unmarshal([]byte(data), dest)
		}
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Debug("Remote cache unavailable, falling back to local tier")
		}
	}

	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, json.Unmarshal(entry.data, dest)
}

// Set stores value under key in both tiers with the given TTL. A remote
// write failure is logged and does not fail the call.
func (c *TwoTier) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, data, ttl).Err(); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to write remote cache tier")
		}
	}

	c.mu.Lock()
	c.local[key] = localEntry{data: data, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

// Delete removes key from both tiers.
func (c *TwoTier) Delete(ctx context.Context, key string) {
	if c.remote != nil {
		if err := c.remote.Del(ctx, key).Err(); err != nil {
			c.logger.WithError(err).WithField("key", key).Debug("Failed to delete from remote cache tier")
		}
	}

	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
}
