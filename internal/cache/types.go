package cache

import (
	"time"

	"github.com/aegishield/aegishield/internal/detect"
)

// ScanResult is the cached outcome of a scan. Detections carry byte offsets
// into the original text, so a cached result is only valid for the exact
// text and rule set that produced its key.
type ScanResult struct {
	Detections []detect.Detection `json:"detections"`
	Summary    detect.Summary     `json:"summary"`
	AIUsed     bool               `json:"ai_used"`
	CachedAt   time.Time          `json:"cached_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration
type Config struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}
