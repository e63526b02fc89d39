package sync

import (
	"context"

	"github.com/kailas-cloud/rci/internal/domain"
)

// Parser walks a component source tree.
type Parser interface {
	ParseAll(ctx context.Context, sourceRoot, packageName string) ([]domain.ParsedComponent, error)
}

// VectorStore defines the storage contract for sync.
type VectorStore interface {
	AddBatch(ctx context.Context, docs []domain.VectorDocument) error
	Clear(ctx context.Context) error
}

// CacheClearer invalidates the search cache after reindexing.
type CacheClearer interface {
	Clear()
}
