// Package status reports index availability and configuration, and exposes
// cache invalidation.
package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/cache"
	"github.com/kailas-cloud/rci/internal/domain"
)

// StatsProvider reads index statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// CacheConfig describes the cache section of the status report.
type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds"`
	MaxSize    int  `json:"maxSize"`
}

// Config is the static configuration echoed in status responses.
type Config struct {
	VectorStore    string      `json:"vectorStore"`
	EmbeddingModel string      `json:"embeddingModel"`
	Dimension      int         `json:"dimension"`
	Cache          CacheConfig `json:"cache"`
}

// Report is the status answer. Stats is nil when the store is unavailable.
type Report struct {
	Available bool               `json:"available"`
	Stats     *domain.IndexStats `json:"stats,omitempty"`
	Config    Config             `json:"config"`
	Cache     *cache.Stats       `json:"cacheStats,omitempty"`
	CheckedAt time.Time          `json:"checkedAt"`
}

// Service answers status and cache-clear requests.
type Service struct {
	store  StatsProvider
	cache  *cache.SmartCache
	cfg    Config
	logger *zap.Logger
}

// New creates a status service. cache may be nil when caching is disabled.
func New(store StatsProvider, c *cache.SmartCache, cfg Config, logger *zap.Logger) *Service {
	return &Service{store: store, cache: c, cfg: cfg, logger: logger}
}

// Status reports availability: true iff the store answered Stats.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{
		Config:    s.cfg,
		CheckedAt: time.Now().UTC(),
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("index stats unavailable", zap.Error(err))
		return report
	}
	report.Available = true
	report.Stats = &stats

	if s.cache != nil {
		cs := s.cache.Stats()
		report.Cache = &cs
	}
	return report
}

// ClearCache empties the search cache.
func (s *Service) ClearCache() {
	if s.cache != nil {
		s.cache.Clear()
		s.logger.Info("search cache cleared")
	}
}
