// Package cache implements the two-tier search cache: an exact LRU tier keyed
// by normalized query + filters, and a semantic tier matched by cosine
// similarity of query embeddings.
package cache

import (
	"crypto/md5" //nolint:gosec // cache key, not security
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	"github.com/kailas-cloud/rci/internal/metrics"
)

// Default tuning. τ is the semantic similarity threshold.
const (
	DefaultMaxSize   = 1000
	DefaultTTL       = 300 * time.Second
	DefaultThreshold = 0.92
)

// Entry is one cached search response.
type Entry struct {
	Response     domain.SearchResponse
	Embedding    []float32
	CreatedAt    time.Time
	LastAccessed time.Time
	HitCount     int
}

// Config tunes the cache. Zero values fall back to the defaults above.
type Config struct {
	Enabled   bool
	MaxSize   int
	TTL       time.Duration
	Threshold float64
}

// Stats is a point-in-time cache snapshot. Hit/miss counters are cumulative
// and survive Clear.
type Stats struct {
	Size            int       `json:"size"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	HitRate         float64   `json:"hitRate"`
	AvgResponseTime float64   `json:"avgResponseTime"`
	OldestEntry     time.Time `json:"oldestEntry"`
	TotalQueries    int64     `json:"totalQueries"`
}

// SmartCache short-circuits repeated or near-duplicate queries.
// Safe for concurrent use.
type SmartCache struct {
	enabled   bool
	ttl       time.Duration
	threshold float64
	logger    *zap.Logger

	mu       sync.Mutex
	exact    *lru.Cache[string, *Entry]
	semantic map[string]*Entry
	semOrder []string

	hits        int64
	misses      int64
	sumDuration int64
	now         func() time.Time
}

// New creates a smart cache. A disabled cache turns Get and Set into no-ops.
func New(cfg Config, logger *zap.Logger) *SmartCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	c := &SmartCache{
		enabled:   cfg.Enabled,
		ttl:       cfg.TTL,
		threshold: cfg.Threshold,
		logger:    logger,
		semantic:  make(map[string]*Entry),
		now:       time.Now,
	}

	// Eviction from the exact tier removes the same key from the semantic
	// tier in lockstep.
	c.exact, _ = lru.NewWithEvict(cfg.MaxSize, func(key string, _ *Entry) {
		c.dropSemantic(key)
	})
	return c
}

// Get looks up the exact tier first, then scans the semantic tier in
// insertion order when an embedding is given. Expired entries are removed on
// access.
func (c *SmartCache) Get(query string, embedding []float32, filters *domain.Filters) (domain.SearchResponse, bool) {
	if !c.enabled {
		return domain.SearchResponse{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := Key(query, filters)

	if e, ok := c.exact.Get(key); ok {
		if now.Sub(e.CreatedAt) <= c.ttl {
			e.LastAccessed = now
			e.HitCount++
			c.hits++
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			return e.Response, true
		}
		c.exact.Remove(key)
	}

	if len(embedding) > 0 {
		// Expired entries leave both tiers, not just the exact one.
		var expired []string
		for _, semKey := range c.semOrder {
			if e, ok := c.semantic[semKey]; ok && now.Sub(e.CreatedAt) > c.ttl {
				expired = append(expired, semKey)
			}
		}
		for _, k := range expired {
			c.exact.Remove(k)
			c.dropSemantic(k)
		}

		for _, semKey := range c.semOrder {
			e, ok := c.semantic[semKey]
			if !ok {
				continue
			}
			sim, err := domain.Cosine(embedding, e.Embedding)
			if err != nil {
				c.logger.Warn("semantic cache entry skipped", zap.Error(err))
				continue
			}
			if sim >= c.threshold {
				e.LastAccessed = now
				e.HitCount++
				c.hits++
				metrics.CacheTotal.WithLabelValues("semantic_hit").Inc()
				return e.Response, true
			}
		}
	}

	c.misses++
	metrics.CacheTotal.WithLabelValues("miss").Inc()
	return domain.SearchResponse{}, false
}

// Set stores a response under the exact key and, when an embedding is given,
// in the semantic tier as well.
func (c *SmartCache) Set(query string, resp domain.SearchResponse, embedding []float32, filters *domain.Filters) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(query, filters)
	e := &Entry{
		Response:  resp,
		Embedding: embedding,
		CreatedAt: c.now(),
	}

	c.exact.Add(key, e)
	if len(embedding) > 0 {
		if _, present := c.semantic[key]; !present {
			c.semOrder = append(c.semOrder, key)
		}
		c.semantic[key] = e
	}
	c.sumDuration += resp.Duration
}

// Clear empties both tiers. Cumulative counters persist for telemetry.
func (c *SmartCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.semantic = make(map[string]*Entry)
	c.semOrder = nil
	c.exact.Purge()
	c.sumDuration = 0
}

// Stats returns a snapshot of the cache state.
func (c *SmartCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	s := Stats{
		Size:         c.exact.Len(),
		Hits:         c.hits,
		Misses:       c.misses,
		TotalQueries: total,
	}
	if total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if n := c.exact.Len(); n > 0 {
		s.AvgResponseTime = float64(c.sumDuration) / float64(n)
		if _, e, ok := c.exact.GetOldest(); ok {
			s.OldestEntry = e.CreatedAt
		}
	}
	return s
}

// dropSemantic removes an evicted key from the semantic tier. Caller holds mu
// (lru eviction callbacks fire inside Add/Remove under our lock).
func (c *SmartCache) dropSemantic(key string) {
	if _, ok := c.semantic[key]; !ok {
		return
	}
	delete(c.semantic, key)
	if i := slices.Index(c.semOrder, key); i >= 0 {
		c.semOrder = slices.Delete(c.semOrder, i, i+1)
	}
}

// Key derives the exact cache key: md5(lower(trim(query)) + canonical filter
// JSON). Filter tags are sorted so equivalent filters share a key.
func Key(query string, filters *domain.Filters) string {
	normalized := strings.ToLower(strings.TrimSpace(query)) + canonicalFilters(filters)
	h := md5.Sum([]byte(normalized)) //nolint:gosec
	return hex.EncodeToString(h[:])
}

func canonicalFilters(f *domain.Filters) string {
	if f.IsEmpty() {
		return "{}"
	}
	canon := *f
	if len(canon.Tags) > 0 {
		canon.Tags = append([]string(nil), canon.Tags...)
		slices.Sort(canon.Tags)
	}
	data, err := json.Marshal(&canon)
	if err != nil {
		return "{}"
	}
	return string(data)
}
