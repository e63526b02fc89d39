package domain

import "time"

// SearchHit pairs a stored document with its similarity to the query vector.
type SearchHit struct {
	Document VectorDocument
	Score    float64
}

// IndexStats summarizes the vector store contents.
type IndexStats struct {
	TotalComponents int            `json:"totalComponents"`
	TotalDocuments  int            `json:"totalDocuments"`
	IndexSize       int64          `json:"indexSize"`
	LastUpdated     time.Time      `json:"lastUpdated"`
	PackageStats    map[string]int `json:"packageStats"`
}

// SearchRequest is one semantic query against the index.
type SearchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"topK,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Filters   *Filters `json:"filters,omitempty"`
}

// SearchResponse is the ranked per-component answer.
type SearchResponse struct {
	Components  []ComponentDoc `json:"components"`
	Scores      []float64      `json:"scores"`
	Confidence  float64        `json:"confidence"`
	Suggestions []string       `json:"suggestions"`
	Duration    int64          `json:"duration"`
}

// SyncRequest triggers a re-scan of a component source tree.
type SyncRequest struct {
	SourcePath   string   `json:"sourcePath"`
	Packages     []string `json:"packages,omitempty"`
	ForceReindex bool     `json:"forceReindex,omitempty"`
}

// SyncStatus is the aggregate outcome of a sync.
type SyncStatus string

// Sync outcomes.
const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncResponse reports the outcome of one sync run.
type SyncResponse struct {
	Status         SyncStatus `json:"status"`
	ProcessedCount int        `json:"processedCount"`
	SuccessCount   int        `json:"successCount"`
	FailedCount    int        `json:"failedCount"`
	Errors         []string   `json:"errors"`
	Duration       int64      `json:"duration"`
}
