// Package cache provides the short-lived result cache for computed
// portfolios. Redis backs the cache when available; otherwise an in-process
// mutex-guarded map with lazy expiry serves the same contract.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
)

// AnalysisEntry is the cached analysis payload: the portfolio together with
// the per-player scoring detail, so cache hits return the same shape as a
// fresh run.
type AnalysisEntry struct {
	Portfolio types.PortfolioOptimization    `json:"portfolio"`
	Scored    []types.RankOptimizationResult `json:"scored_players"`
	Excluded  []int                          `json:"excluded_players,omitempty"`
}

// ResultCache caches AnalysisEntry values keyed by request-identifying
// parameters, with a fixed time-to-live.
type ResultCache struct {
	client    *redis.Client // nil when Redis is unavailable
	ttl       time.Duration
	keyPrefix string
	logger    *logrus.Entry

	mu    sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	value      AnalysisEntry
	insertedAt time.Time
}

// NewResultCache creates a cache backed by the given Redis client. A nil
// client selects the in-memory fallback; the caller decides that based on
// connectivity at startup.
func NewResultCache(client *redis.Client, ttl time.Duration, log *logrus.Logger) *ResultCache {
	c := &ResultCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: "rank-optimizer",
		logger:    log.WithField("component", "result_cache"),
	}
	if client == nil {
		c.local = make(map[string]localEntry)
		c.logger.Warn("Redis unavailable, using in-memory result cache")
	}
	return c
}

// BuildKey constructs a cache key from request-identifying parameters. The
// player set is fingerprinted in, so the same team and rank parameters with
// different player lists do not collide.
func (c *ResultCache) BuildKey(teamID, gameweek, currentRank, targetRank int, chip string, players []types.Player) string {
	h := fnv.New64a()
	for _, p := range players {
		fmt.Fprintf(h, "%d,", p.ID)
	}
	return fmt.Sprintf("%s:portfolio:%d:%d:%d:%d:%s:%x", c.keyPrefix, teamID, gameweek, currentRank, targetRank, chip, h.Sum64())
}

// Get returns the cached analysis for key, if present and unexpired.
// Expiry is checked lazily on read; there is no background eviction.
func (c *ResultCache) Get(ctx context.Context, key string) (AnalysisEntry, bool) {
	if c.client == nil {
		return c.getLocal(key)
	}

	result, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Error("Failed to read result cache")
		}
		return AnalysisEntry{}, false
	}

	var entry AnalysisEntry
	if err := json.Unmarshal([]byte(result), &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to unmarshal cached analysis")
		return AnalysisEntry{}, false
	}

	c.logger.WithField("key", key).Debug("Result cache hit")
	return entry, true
}

// Set stores an analysis under key with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, key string, entry AnalysisEntry) {
	if c.client == nil {
		c.setLocal(key, entry)
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal analysis for cache")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to write result cache")
	}
}

func (c *ResultCache) getLocal(key string) (AnalysisEntry, bool) {
	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()

	if !ok {
		return AnalysisEntry{}, false
	}
	if time.Since(entry.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another reader may have replaced it.
		if cur, ok := c.local[key]; ok && time.Since(cur.insertedAt) >= c.ttl {
			delete(c.local, key)
		}
		c.mu.Unlock()
		return AnalysisEntry{}, false
	}
	return entry.value, true
}

func (c *ResultCache) setLocal(key string, entry AnalysisEntry) {
	c.mu.Lock()
	c.local[key] = localEntry{value: entry, insertedAt: time.Now()}
	c.mu.Unlock()
}
