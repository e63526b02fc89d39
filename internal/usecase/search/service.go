// Package search answers semantic component queries: embed, retrieve per-facet
// hits, aggregate them into per-component scores, and cache the response.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
)

// Defaults applied when a request leaves TopK or Threshold unset.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.5

	// fanoutCap bounds the internal over-fetch used for per-component
	// aggregation: k' = min(fanoutCap, topK*fanoutFactor).
	fanoutCap    = 1000
	fanoutFactor = 20
)

// Facet weights and boosts for per-hit relevance.
const (
	weightDescription = 1.2
	weightAPI         = 1.0
	weightExample     = 0.8
	keywordBoost      = 1.3
)

// Service runs semantic searches.
type Service struct {
	store  VectorSearcher
	embed  domain.Embedder
	cache  Cache
	logger *zap.Logger
}

// New creates a search service. cache may be nil when caching is disabled.
func New(store VectorSearcher, embed domain.Embedder, cache Cache, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, cache: cache, logger: logger}
}

// Search returns the topK most relevant components for a query. Embedding or
// store failures fail the whole request.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return domain.SearchResponse{}, fmt.Errorf("query is required: %w", domain.ErrSearch)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	qv, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	if s.cache != nil {
		if resp, ok := s.cache.Get(req.Query, qv, req.Filters); ok {
			resp.Duration = time.Since(start).Milliseconds()
			return resp, nil
		}
	}

	fanout := min(fanoutCap, topK*fanoutFactor)
	var hits []domain.SearchHit
	if req.Filters.IsEmpty() {
		hits, err = s.store.TopK(ctx, qv, fanout, threshold)
	} else {
		hits, err = s.store.TopKFiltered(ctx, qv, req.Filters, fanout, threshold)
	}
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("query index: %w", err)
	}

	resp := s.rank(req.Query, hits, topK)
	resp.Duration = time.Since(start).Milliseconds()

	if s.cache != nil {
		s.cache.Set(req.Query, resp, qv, req.Filters)
	}

	s.logger.Debug("search finished",
		zap.String("query", req.Query),
		zap.Int("hits", len(hits)),
		zap.Int("components", len(resp.Components)),
		zap.Int64("duration_ms", resp.Duration),
	)
	return resp, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embed.BatchEmbed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("got %d vectors for one query: %w", len(vectors), domain.ErrEmbedding)
	}
	return vectors[0], nil
}

// group accumulates the facet hits of one (packageName, componentName) pair.
type group struct {
	pkg    string
	name   string
	scores []float64
	desc   string
	meta   domain.Metadata
}

// rank folds per-facet hits into per-component totals and builds the response.
func (s *Service) rank(query string, hits []domain.SearchHit, topK int) domain.SearchResponse {
	queryLower := strings.ToLower(query)

	groups := make(map[string]*group)
	var order []string
	for i := range hits {
		h := &hits[i]
		m := &h.Document.Metadata
		key := m.PackageName + "/" + m.ComponentName
		g, ok := groups[key]
		if !ok {
			g = &group{pkg: m.PackageName, name: m.ComponentName, meta: *m}
			groups[key] = g
			order = append(order, key)
		}
		g.scores = append(g.scores, relevanceScore(h, queryLower))
		if m.Type == domain.FacetDescription && g.desc == "" {
			g.desc = h.Document.Content
		}
	}

	type ranked struct {
		g     *group
		total float64
	}
	rankedGroups := make([]ranked, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		rankedGroups = append(rankedGroups, ranked{g: g, total: groupTotal(g.scores)})
	}
	sort.SliceStable(rankedGroups, func(i, j int) bool {
		if rankedGroups[i].total != rankedGroups[j].total {
			return rankedGroups[i].total > rankedGroups[j].total
		}
		if rankedGroups[i].g.pkg != rankedGroups[j].g.pkg {
			return rankedGroups[i].g.pkg < rankedGroups[j].g.pkg
		}
		return rankedGroups[i].g.name < rankedGroups[j].g.name
	})
	if len(rankedGroups) > topK {
		rankedGroups = rankedGroups[:topK]
	}

	resp := domain.SearchResponse{
		Components: make([]domain.ComponentDoc, len(rankedGroups)),
		Scores:     make([]float64, len(rankedGroups)),
	}
	var sum, maxTotal float64
	for i, r := range rankedGroups {
		// Minimal reconstruction from metadata; callers needing the full API
		// text or examples join against the stored facet documents.
		resp.Components[i] = domain.ComponentDoc{
			PackageName:   r.g.pkg,
			ComponentName: r.g.name,
			Description:   r.g.desc,
			Tags:          r.g.meta.Tags,
			Version:       r.g.meta.Version,
		}
		resp.Scores[i] = r.total
		sum += r.total
		maxTotal = max(maxTotal, r.total)
	}

	if len(rankedGroups) > 0 {
		mean := sum / float64(len(rankedGroups))
		resp.Confidence = mean*0.6 + maxTotal*0.4
	}
	resp.Suggestions = suggestions(resp.Components)
	return resp
}

// relevanceScore weighs a facet hit: true similarity as the base, facet-type
// weight, and a keyword boost when the content contains the query verbatim.
// Clamped to 1.
func relevanceScore(h *domain.SearchHit, queryLower string) float64 {
	score := h.Score
	switch h.Document.Metadata.Type {
	case domain.FacetDescription:
		score *= weightDescription
	case domain.FacetExample:
		score *= weightExample
	default:
		score *= weightAPI
	}
	if strings.Contains(strings.ToLower(h.Document.Content), queryLower) {
		score *= keywordBoost
	}
	return min(score, 1.0)
}

// groupTotal combines the facet scores of one component: max*0.7 + mean*0.3.
func groupTotal(scores []float64) float64 {
	var sum, best float64
	for _, s := range scores {
		sum += s
		best = max(best, s)
	}
	return best*0.7 + (sum/float64(len(scores)))*0.3
}

func suggestions(components []domain.ComponentDoc) []string {
	switch len(components) {
	case 0:
		return []string{
			"Try using more general terms in your search",
			"Check if the component name is correct",
		}
	case 1:
		return []string{fmt.Sprintf("Found perfect match: %s", components[0].ComponentName)}
	default:
		return []string{
			fmt.Sprintf("Found %d relevant components", len(components)),
			fmt.Sprintf("Top match: %s", components[0].ComponentName),
		}
	}
}
