// Package sync orchestrates a full re-scan of a component source tree:
// parse, expand into facet texts, embed, and store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/rci/internal/domain"
	"github.com/kailas-cloud/rci/internal/metrics"
)

// DefaultBatchSize is the number of components vectorized in parallel per
// store write. Batches run sequentially to bound memory and provider rate.
const DefaultBatchSize = 10

// Service runs sync operations.
type Service struct {
	parser      Parser
	store       VectorStore
	embed       domain.Embedder
	cache       CacheClearer
	batchSize   int
	sourcePath  string
	packageName string
	logger      *zap.Logger
}

// New creates a sync service. sourcePath and packageName are the configured
// defaults used when a request leaves them empty.
func New(parser Parser, store VectorStore, embed domain.Embedder, cache CacheClearer, logger *zap.Logger) *Service {
	return &Service{
		parser:    parser,
		store:     store,
		embed:     embed,
		cache:     cache,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithDefaults configures the fallback source path and package namespace.
func (s *Service) WithDefaults(sourcePath, packageName string) *Service {
	s.sourcePath = sourcePath
	s.packageName = packageName
	return s
}

// WithBatchSize overrides the per-batch component parallelism.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Sync re-scans the source tree and refreshes the index. Per-component
// failures are tolerated and reported; a failure to read the tree itself is
// fatal. The search cache is cleared afterwards.
func (s *Service) Sync(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error) {
	start := time.Now()

	sourcePath := req.SourcePath
	if sourcePath == "" {
		sourcePath = s.sourcePath
	}

	parsed, err := s.parser.ParseAll(ctx, sourcePath, s.packageName)
	if err != nil {
		return domain.SyncResponse{}, fmt.Errorf("parse components: %w", err)
	}

	if len(req.Packages) > 0 {
		filtered := parsed[:0]
		for _, p := range parsed {
			if slices.Contains(req.Packages, p.Doc.PackageName) {
				filtered = append(filtered, p)
			}
		}
		parsed = filtered
	}

	resp := domain.SyncResponse{
		ProcessedCount: len(parsed),
		Errors:         []string{},
	}

	if req.ForceReindex {
		if err := s.store.Clear(ctx); err != nil {
			return domain.SyncResponse{}, fmt.Errorf("clear index: %w", err)
		}
	}

	// Parse failures count against the run without stopping it.
	var pending []domain.ComponentDoc
	for _, p := range parsed {
		if p.Status == domain.ParseError {
			resp.FailedCount++
			resp.Errors = append(resp.Errors, p.Doc.ComponentName+": "+p.Err)
			continue
		}
		pending = append(pending, p.Doc)
	}

	cancelled := false
	done := 0
	for batchStart := 0; batchStart < len(pending); batchStart += s.batchSize {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		batch := pending[batchStart:min(batchStart+s.batchSize, len(pending))]
		succeeded, errs := s.processBatch(ctx, batch)
		resp.SuccessCount += succeeded
		resp.FailedCount += len(errs)
		resp.Errors = append(resp.Errors, errs...)
		done += len(batch)
	}

	if cancelled {
		resp.Errors = append(resp.Errors, fmt.Sprintf("cancelled after %d components", done))
		resp.FailedCount = resp.ProcessedCount - resp.SuccessCount
	}

	s.cache.Clear()

	switch {
	case cancelled, resp.SuccessCount > 0 && resp.FailedCount > 0:
		resp.Status = domain.SyncPartial
	case resp.FailedCount > 0:
		resp.Status = domain.SyncFailed
	default:
		resp.Status = domain.SyncSuccess
	}
	resp.Duration = time.Since(start).Milliseconds()
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("sync finished",
		zap.String("source_path", sourcePath),
		zap.String("status", string(resp.Status)),
		zap.Int("processed", resp.ProcessedCount),
		zap.Int("succeeded", resp.SuccessCount),
		zap.Int("failed", resp.FailedCount),
		zap.Int64("duration_ms", resp.Duration),
	)
	return resp, nil
}

// processBatch vectorizes one batch of components in parallel and issues a
// single store write for the whole batch. Per-component failures are
// collected; the batch continues.
func (s *Service) processBatch(ctx context.Context, batch []domain.ComponentDoc) (succeeded int, errs []string) {
	vectors := make([][]domain.VectorDocument, len(batch))
	failures := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i := range batch {
		g.Go(func() error {
			docs, err := s.componentVectors(gctx, &batch[i])
			if err != nil {
				failures[i] = err
				return nil // per-component tolerance
			}
			vectors[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	var toAdd []domain.VectorDocument
	var okIdx []int
	for i := range batch {
		if failures[i] != nil {
			errs = append(errs, batch[i].ComponentName+": "+failures[i].Error())
			continue
		}
		toAdd = append(toAdd, vectors[i]...)
		okIdx = append(okIdx, i)
	}

	if len(toAdd) > 0 {
		if err := s.store.AddBatch(ctx, toAdd); err != nil {
			for _, i := range okIdx {
				errs = append(errs, batch[i].ComponentName+": "+err.Error())
			}
			return 0, errs
		}
	}
	return len(okIdx), errs
}

// componentVectors expands a component into one text per facet and embeds
// them in a single provider call.
func (s *Service) componentVectors(ctx context.Context, doc *domain.ComponentDoc) ([]domain.VectorDocument, error) {
	var texts []string
	var facets []domain.FacetType

	if doc.Description != "" {
		texts = append(texts, doc.Description)
		facets = append(facets, domain.FacetDescription)
	}
	if doc.API != "" && doc.API != domain.NoAPIDoc {
		texts = append(texts, doc.API)
		facets = append(facets, domain.FacetAPI)
	}
	for _, ex := range doc.Examples {
		if ex == "" {
			continue
		}
		texts = append(texts, ex)
		facets = append(facets, domain.FacetExample)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("embed facets: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d facet texts: %w",
			len(embeddings), len(texts), domain.ErrEmbedding)
	}

	out := make([]domain.VectorDocument, len(texts))
	for i := range texts {
		out[i] = domain.VectorDocument{
			ID:        domain.DocumentID(doc.ComponentName, facets[i], texts[i]),
			Content:   texts[i],
			Embedding: embeddings[i],
			Metadata: domain.Metadata{
				ComponentName: doc.ComponentName,
				PackageName:   doc.PackageName,
				Type:          facets[i],
				Tags:          doc.Tags,
				Version:       doc.Version,
			},
		}
	}
	return out, nil
}
