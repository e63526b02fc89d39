package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
// Implementations preserve input order: output index i corresponds to texts[i].
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModelDescriptor holds the limits of an embedding model.
type ModelDescriptor struct {
	MaxTokens  int
	Dimensions int
}

// DefaultModel is the embedding model used when the config names none.
const DefaultModel = "text-embedding-3-small"

var modelDescriptors = map[string]ModelDescriptor{
	"text-embedding-3-small": {MaxTokens: 8192, Dimensions: 1536},
	"text-embedding-3-large": {MaxTokens: 8192, Dimensions: 3072},
	"text-embedding-ada-002": {MaxTokens: 8192, Dimensions: 1536},
}

// ModelInfo returns the descriptor for a model. Unknown models get the
// conservative default {8192, 1536}.
func ModelInfo(model string) ModelDescriptor {
	if d, ok := modelDescriptors[model]; ok {
		return d
	}
	return ModelDescriptor{MaxTokens: 8192, Dimensions: 1536}
}
