// Package file implements the durable vector store over three JSON files:
// documents.json (full records), vectors.json (id+embedding+metadata, kept
// redundant for read efficiency), and metadata.json.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	"github.com/kailas-cloud/rci/internal/metrics"
)

const (
	documentsFile = "documents.json"
	vectorsFile   = "vectors.json"
	metadataFile  = "metadata.json"

	storeVersion = "1.0.0"
)

// indexEntry is one vectors.json record: a document without its content.
type indexEntry struct {
	ID        string          `json:"id"`
	Embedding []float32       `json:"embedding"`
	Metadata  domain.Metadata `json:"metadata"`
}

type metaRecord struct {
	TotalDocuments int       `json:"totalDocuments"`
	IndexSize      int64     `json:"indexSize"`
	LastUpdated    time.Time `json:"lastUpdated"`
	Version        string    `json:"version"`
}

// Store is a file-backed dense vector index. All operations are serialisable:
// writers hold the exclusive lock, readers never observe partial writes.
type Store struct {
	basePath string
	dim      int
	logger   *zap.Logger

	mu   sync.RWMutex
	docs []domain.VectorDocument
	byID map[string]struct{}
	meta metaRecord
}

// New creates a store rooted at basePath enforcing the given dimension.
func New(basePath string, dim int, logger *zap.Logger) *Store {
	return &Store{
		basePath: basePath,
		dim:      dim,
		logger:   logger,
		byID:     make(map[string]struct{}),
	}
}

// Initialize creates basePath if absent and loads or seeds the backing files.
// Failures here are fatal to the service.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("create %s: %v: %w", s.basePath, err, domain.ErrInit)
	}

	loaded, err := s.load()
	if err != nil {
		return fmt.Errorf("load backing files: %v: %w", err, domain.ErrInit)
	}
	if !loaded {
		s.docs = nil
		s.meta = metaRecord{LastUpdated: time.Now().UTC(), Version: storeVersion}
		if err := s.persist(); err != nil {
			return fmt.Errorf("seed backing files: %v: %w", err, domain.ErrInit)
		}
	}

	metrics.StoreDocuments.Set(float64(len(s.docs)))
	s.logger.Info("vector store ready",
		zap.String("path", s.basePath),
		zap.Int("documents", len(s.docs)),
		zap.Int("dimension", s.dim),
	)
	return nil
}

// AddBatch appends documents, skipping any whose id already exists.
// Dimension is enforced per document.
func (s *Store) AddBatch(ctx context.Context, docs []domain.VectorDocument) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("add batch: %w", domain.ErrCancelled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate and dedup the whole batch before touching state: a batch
	// that fails must leave the index at its pre-call state.
	fresh := make([]domain.VectorDocument, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, exists := s.byID[d.ID]; exists {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		if len(d.Embedding) != s.dim {
			return fmt.Errorf("document %s has dimension %d, index expects %d: %w",
				d.ID, len(d.Embedding), s.dim, domain.ErrDimensionMismatch)
		}
		seen[d.ID] = struct{}{}
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		return nil
	}

	for _, d := range fresh {
		s.docs = append(s.docs, d)
		s.byID[d.ID] = struct{}{}
	}

	if err := s.persist(); err != nil {
		s.docs = s.docs[:len(s.docs)-len(fresh)]
		for _, d := range fresh {
			delete(s.byID, d.ID)
		}
		return fmt.Errorf("persist batch: %v: %w", err, domain.ErrVectorStore)
	}
	metrics.StoreDocuments.Set(float64(len(s.docs)))
	return nil
}

// TopK returns up to k documents with cosine similarity >= threshold,
// sorted by descending score.
func (s *Store) TopK(ctx context.Context, qv []float32, k int, threshold float64) ([]domain.SearchHit, error) {
	return s.TopKFiltered(ctx, qv, nil, k, threshold)
}

// TopKFiltered is TopK with a metadata pre-filter.
func (s *Store) TopKFiltered(
	ctx context.Context, qv []float32, filters *domain.Filters, k int, threshold float64,
) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("top-k: %w", domain.ErrCancelled)
	}
	if k < 1 {
		return nil, fmt.Errorf("top-k requires k >= 1, got %d: %w", k, domain.ErrVectorStore)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]domain.SearchHit, 0, k)
	for i := range s.docs {
		d := &s.docs[i]
		if !d.Metadata.Matches(filters) {
			continue
		}
		score, err := domain.Cosine(qv, d.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", d.ID, err)
		}
		if score < threshold {
			continue
		}
		hits = append(hits, domain.SearchHit{Document: *d, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the listed ids from all tables atomically (full rewrite).
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete: %w", domain.ErrCancelled)
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.docs[:0]
	for _, d := range s.docs {
		if _, gone := drop[d.ID]; gone {
			delete(s.byID, d.ID)
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == len(s.docs) {
		return nil
	}
	s.docs = kept

	if err := s.persist(); err != nil {
		return fmt.Errorf("persist delete: %v: %w", err, domain.ErrVectorStore)
	}
	metrics.StoreDocuments.Set(float64(len(s.docs)))
	return nil
}

// Clear replaces all tables with empty ones.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clear: %w", domain.ErrCancelled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = nil
	s.byID = make(map[string]struct{})

	if err := s.persist(); err != nil {
		return fmt.Errorf("persist clear: %v: %w", err, domain.ErrVectorStore)
	}
	metrics.StoreDocuments.Set(0)
	return nil
}

// Stats reports index totals and per-package document counts.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexStats{}, fmt.Errorf("stats: %w", domain.ErrCancelled)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	components := make(map[string]struct{})
	packages := make(map[string]int)
	for i := range s.docs {
		m := &s.docs[i].Metadata
		components[m.PackageName+"/"+m.ComponentName] = struct{}{}
		packages[m.PackageName]++
	}

	return domain.IndexStats{
		TotalComponents: len(components),
		TotalDocuments:  len(s.docs),
		IndexSize:       s.meta.IndexSize,
		LastUpdated:     s.meta.LastUpdated,
		PackageStats:    packages,
	}, nil
}

// Ping verifies that the backing directory is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ping: %w", domain.ErrCancelled)
	}
	if _, err := os.Stat(s.basePath); err != nil {
		return fmt.Errorf("stat %s: %w", s.basePath, err)
	}
	return nil
}

// load reads the backing files if present. Returns false when neither table
// file exists yet. A documents.json-only or vectors.json-only layout is
// tolerated.
func (s *Store) load() (bool, error) {
	docsPath := filepath.Join(s.basePath, documentsFile)
	data, err := os.ReadFile(docsPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.docs); err != nil {
			return false, fmt.Errorf("parse %s: %w", documentsFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
		ok, ferr := s.loadFromIndex()
		if ferr != nil {
			return false, ferr
		}
		if !ok {
			return false, nil
		}
	default:
		return false, fmt.Errorf("read %s: %w", documentsFile, err)
	}

	s.byID = make(map[string]struct{}, len(s.docs))
	for i := range s.docs {
		s.byID[s.docs[i].ID] = struct{}{}
	}

	metaData, err := os.ReadFile(filepath.Join(s.basePath, metadataFile))
	if err == nil {
		if err := json.Unmarshal(metaData, &s.meta); err != nil {
			return false, fmt.Errorf("parse %s: %w", metadataFile, err)
		}
	} else {
		s.meta = metaRecord{
			TotalDocuments: len(s.docs),
			LastUpdated:    time.Now().UTC(),
			Version:        storeVersion,
		}
	}
	return true, nil
}

// loadFromIndex hydrates documents from vectors.json when documents.json is
// absent. Content is not recoverable from the index file.
func (s *Store) loadFromIndex() (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, vectorsFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", vectorsFile, err)
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return false, fmt.Errorf("parse %s: %w", vectorsFile, err)
	}

	s.docs = make([]domain.VectorDocument, len(entries))
	for i, e := range entries {
		s.docs[i] = domain.VectorDocument{ID: e.ID, Embedding: e.Embedding, Metadata: e.Metadata}
	}
	s.logger.Warn("hydrated index without document content", zap.Int("documents", len(entries)))
	return true, nil
}

// persist writes all three files via write-temp-then-rename so a crash leaves
// either the pre- or post-state readable. Caller holds the write lock.
func (s *Store) persist() error {
	docsJSON, err := json.Marshal(docsOrEmpty(s.docs))
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	entries := make([]indexEntry, len(s.docs))
	for i, d := range s.docs {
		entries[i] = indexEntry{ID: d.ID, Embedding: d.Embedding, Metadata: d.Metadata}
	}
	vectorsJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	s.meta = metaRecord{
		TotalDocuments: len(s.docs),
		IndexSize:      int64(len(docsJSON) + len(vectorsJSON)),
		LastUpdated:    time.Now().UTC(),
		Version:        storeVersion,
	}
	metaJSON, err := json.Marshal(s.meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{documentsFile, docsJSON},
		{vectorsFile, vectorsJSON},
		{metadataFile, metaJSON},
	}
	for _, f := range files {
		if err := renameio.WriteFile(filepath.Join(s.basePath, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// docsOrEmpty keeps the documents table a JSON array rather than null.
func docsOrEmpty(docs []domain.VectorDocument) []domain.VectorDocument {
	if docs == nil {
		return []domain.VectorDocument{}
	}
	return docs
}
