package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/db"
)

const statsTTL = 5 * time.Minute

// StatsCache is a read-through cache for per-user stats in front of the
// database. Every online-player listing fetches stats for each connected
// user, so the hot path is reads of rarely-changing rows. All methods are
// safe on a nil receiver, which disables caching.
type StatsCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewStatsCache(rdb *redis.Client, log *zap.Logger) *StatsCache {
	return &StatsCache{rdb: rdb, log: log}
}

func statsKey(username string) string {
	return "stats:" + username
}

func (c *StatsCache) Get(ctx context.Context, username string) (db.Stats, bool) {
	if c == nil {
		return db.Stats{}, false
	}
	payload, err := c.rdb.Get(ctx, statsKey(username)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("stats cache read failed", zap.String("username", username), zap.Error(err))
		}
		return db.Stats{}, false
	}
	var stats db.Stats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		c.log.Warn("stats cache entry corrupt", zap.String("username", username), zap.Error(err))
		return db.Stats{}, false
	}
	return stats, true
}

func (c *StatsCache) Set(ctx context.Context, username string, stats db.Stats) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, statsKey(username), payload, statsTTL).Err(); err != nil {
		c.log.Warn("stats cache write failed", zap.String("username", username), zap.Error(err))
	}
}

func (c *StatsCache) Invalidate(ctx context.Context, usernames ...string) {
	if c == nil {
		return
	}
	for _, username := range usernames {
		if err := c.rdb.Del(ctx, statsKey(username)).Err(); err != nil {
			c.log.Warn("stats cache invalidation failed", zap.String("username", username), zap.Error(err))
		}
	}
}
