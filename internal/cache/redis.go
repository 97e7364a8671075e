package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ScanCache stores scan results in Redis keyed by a digest of the input text
// and the active rule set. The raw text is never written to Redis, only its
// hash and the resulting detections.
type ScanCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewScanCache creates a Redis-backed scan cache.
func NewScanCache(config *Config, logger *zap.Logger) (*ScanCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	sc := &ScanCache{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Scan cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return sc, nil
}

// Key derives the cache key for a scan. Anything that changes the scan
// output must change the key: the text itself, the rule-set fingerprint,
// and whether AI detection participated.
func (sc *ScanCache) Key(text, rulesFingerprint string, aiUsed bool) string {
	hasher := sha256.New()
	hasher.Write([]byte(text))
	hasher.Write([]byte{0})
	hasher.Write([]byte(rulesFingerprint))
	hasher.Write([]byte{0})
	if aiUsed {
		hasher.Write([]byte{1})
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:scan:%s", sc.config.KeyPrefix, hash)
}

// Get returns the cached result for a key, or nil on a miss. Lookup errors
// degrade to a miss so a Redis outage never fails a scan.
func (sc *ScanCache) Get(ctx context.Context, key string) (*ScanResult, error) {
	data, err := sc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		sc.misses.Add(1)
		sc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, nil
	} else if err != nil {
		sc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, nil
	}

	var result ScanResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		sc.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		sc.client.Del(ctx, key)
		return nil, nil
	}

	sc.hits.Add(1)
	sc.logger.Debug("Cache hit",
		zap.String("key", key),
		zap.Int("detections", len(result.Detections)))

	return &result, nil
}

// Store caches a scan result with the configured TTL.
func (sc *ScanCache) Store(ctx context.Context, key string, result *ScanResult) error {
	result.CachedAt = time.Now()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := sc.client.Set(ctx, key, data, sc.config.DefaultTTL).Err(); err != nil {
		sc.logger.Error("Failed to cache scan result", zap.Error(err))
		return fmt.Errorf("failed to cache scan result: %w", err)
	}

	sc.logger.Debug("Scan result cached",
		zap.String("key", key),
		zap.Int("detections", len(result.Detections)))

	return nil
}

// GetStats returns cache performance statistics
func (sc *ScanCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := sc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   sc.hits.Load(),
		Misses: sc.misses.Load(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "used_memory:") {
			if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != "" {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	if keys, err := sc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached scan results under the configured prefix.
func (sc *ScanCache) Clear(ctx context.Context) error {
	pattern := sc.config.KeyPrefix + "*"

	iter := sc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := sc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			sc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	sc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (sc *ScanCache) Close() error {
	if sc.client != nil {
		return sc.client.Close()
	}
	return nil
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
