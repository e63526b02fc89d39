package search

import (
	"context"

	"github.com/kailas-cloud/rci/internal/domain"
)

// VectorSearcher defines the index read contract for search.
type VectorSearcher interface {
	TopK(ctx context.Context, qv []float32, k int, threshold float64) ([]domain.SearchHit, error)
	TopKFiltered(ctx context.Context, qv []float32, filters *domain.Filters, k int, threshold float64) ([]domain.SearchHit, error)
}

// Cache is the consumer interface for the smart cache.
type Cache interface {
	Get(query string, embedding []float32, filters *domain.Filters) (domain.SearchResponse, bool)
	Set(query string, resp domain.SearchResponse, embedding []float32, filters *domain.Filters)
}
