package cache

import (
	"strconv"
	"time"

	"sjsage522/tenderscraper/logger"
)

// RateLimitGuard records that an upstream asked us to back off, so that every
// process sharing the cache stops sending requests for BlockTime.
type RateLimitGuard struct {
	Cache     CacheService
	Key       string
	BlockTime time.Duration
}

// NewRateLimitGuard creates a guard. A nil cache yields a guard that never blocks.
func NewRateLimitGuard(cacheSvc CacheService, key string, blockTime time.Duration) *RateLimitGuard {
	return &RateLimitGuard{Cache: cacheSvc, Key: key, BlockTime: blockTime}
}

// Blocked reports whether the block marker is present. A failing cache
// does not block.
func (g *RateLimitGuard) Blocked() bool {
	if g == nil || g.Cache == nil || g.Key == "" {
		return false
	}
	_, err := g.Cache.Get(g.Key)
	switch {
	case err == nil:
		return true
	case IsMiss(err):
		return false
	default:
		logger.ForCache().Warn().Err(err).Str("key", g.Key).Msg("Failed to read rate limit marker")
		return false
	}
}

// Block sets the block marker for BlockTime
func (g *RateLimitGuard) Block() {
	if g == nil || g.Cache == nil || g.Key == "" || g.BlockTime <= 0 {
		return
	}
	seconds := strconv.Itoa(int(g.BlockTime / time.Second))
	if err := g.Cache.Set(g.Key, []byte(seconds), g.BlockTime); err != nil {
		logger.ForCache().Warn().Err(err).Str("key", g.Key).Msg("Failed to set rate limit marker")
		return
	}
	logger.ForCache().Info().Str("key", g.Key).Dur("block_time", g.BlockTime).Msg("Portal marked as rate limited")
}
