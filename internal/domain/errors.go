package domain

import "errors"

var (
	// ErrInit signals a vector store bootstrap failure. Fatal to the service.
	ErrInit = errors.New("vector store initialization failed")
	// ErrComponentParse signals a per-component parse failure.
	ErrComponentParse = errors.New("component parse failed")
	// ErrEmbedding signals an embedding provider failure (non-auth, non-quota).
	ErrEmbedding = errors.New("embedding failed")
	// ErrQuotaExceeded signals that the provider reported an exhausted quota.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrAuthFailed signals that the provider rejected the credentials.
	ErrAuthFailed = errors.New("embedding authentication failed")
	// ErrVectorStore signals a backing read/write failure.
	ErrVectorStore = errors.New("vector store error")
	// ErrSearch signals a composite search failure.
	ErrSearch = errors.New("search failed")
	// ErrCancelled signals caller cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrDimensionMismatch signals a vector length mismatch.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyInput signals that no embeddable text remained after filtering.
	ErrEmptyInput = errors.New("empty input")
	// ErrPathNotFound signals a missing source path during sync.
	ErrPathNotFound = errors.New("source path not found")
	// ErrPermission signals a filesystem permission failure during sync.
	ErrPermission = errors.New("permission denied")
)

// codes maps sentinel errors to their stable wire codes.
var codes = []struct {
	err  error
	code string
}{
	{ErrInit, "INIT_ERROR"},
	{ErrComponentParse, "COMPONENT_PARSE_ERROR"},
	{ErrQuotaExceeded, "QUOTA_EXCEEDED"},
	{ErrAuthFailed, "AUTH_FAILED"},
	{ErrCancelled, "CANCELLED"},
	{ErrDimensionMismatch, "VECTOR_STORE_ERROR"},
	{ErrVectorStore, "VECTOR_STORE_ERROR"},
	{ErrEmbedding, "EMBEDDING_ERROR"},
	{ErrSearch, "SEARCH_ERROR"},
}

// ErrorCode returns the stable code for a domain error, or "INTERNAL_ERROR".
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL_ERROR"
}
