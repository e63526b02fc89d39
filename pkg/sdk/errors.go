package rci

import "github.com/kailas-cloud/rci/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrQuotaExceeded = domain.ErrQuotaExceeded
	ErrAuthFailed    = domain.ErrAuthFailed
	ErrEmbedding     = domain.ErrEmbedding
	ErrVectorStore   = domain.ErrVectorStore
	ErrSearch        = domain.ErrSearch
	ErrPathNotFound  = domain.ErrPathNotFound
	ErrPermission    = domain.ErrPermission
	ErrEmptyInput    = domain.ErrEmptyInput
)

// codeToErr maps wire error codes back to sentinel errors.
var codeToErr = map[string]error{
	"QUOTA_EXCEEDED":     ErrQuotaExceeded,
	"AUTH_FAILED":        ErrAuthFailed,
	"EMBEDDING_ERROR":    ErrEmbedding,
	"VECTOR_STORE_ERROR": ErrVectorStore,
	"SEARCH_ERROR":       ErrSearch,
}
