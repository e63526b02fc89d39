// Package openai implements the embedding provider over the OpenAI-compatible
// embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	"github.com/kailas-cloud/rci/internal/metrics"
)

const (
	// maxBatchSize is the largest number of texts per provider call.
	maxBatchSize = 100
	// batchPause is the rate-limit floor between successive provider calls.
	batchPause = 100 * time.Millisecond
	// maxAttempts bounds retries per provider call.
	maxAttempts = 3
	// tokenHeadroom keeps 10% slack under the model's token limit.
	tokenHeadroom = 0.9
)

// Embedder vectorizes batches of texts via an OpenAI-compatible API.
// Output vectors are unit-length and ordered to match the input.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	descriptor domain.ModelDescriptor
	dimensions int
	provider   string
	retryDelay time.Duration
	pause      time.Duration
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = domain.DefaultModel
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		descriptor: domain.ModelInfo(model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		retryDelay: retryDelay,
		pause:      batchPause,
		logger:     cfg.Logger,
	}
}

// BatchEmbed implements domain.Embedder. Whitespace-only texts are dropped
// before the call; an input that filters down to nothing is an error. Batches
// are capped at 100 texts with a 100ms pause between provider calls.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prepared := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		prepared = append(prepared, e.truncate(t))
	}
	if len(prepared) == 0 {
		return nil, fmt.Errorf("no embeddable text after filtering: %w", domain.ErrEmptyInput)
	}

	out := make([][]float32, 0, len(prepared))
	for start := 0; start < len(prepared); start += maxBatchSize {
		if start > 0 {
			select {
			case <-time.After(e.pause):
			case <-ctx.Done():
				return nil, fmt.Errorf("embed batch: %w", domain.ErrCancelled)
			}
		}

		end := min(start+maxBatchSize, len(prepared))
		vectors, err := e.embedBatch(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// embedBatch performs one provider call with up to maxAttempts linear-backoff
// retries. Quota and auth failures are surfaced immediately.
func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          batch,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var resp openai.EmbeddingResponse
	operation := func() error {
		start := time.Now()
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
			classified := classifyAPIError(err)
			if errors.Is(classified, domain.ErrQuotaExceeded) || errors.Is(classified, domain.ErrAuthFailed) {
				return backoff.Permanent(classified)
			}
			e.logger.Warn("embedding request failed, will retry",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			return classified
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
		metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).
			Observe(time.Since(start).Seconds())
		if resp.Usage.TotalTokens > 0 {
			metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model)).
				Add(float64(resp.Usage.TotalTokens))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(e.retryDelay), maxAttempts-1), ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embed batch: %w", domain.ErrCancelled)
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model)).Inc()
		return nil, err
	}

	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts: %w",
			len(resp.Data), len(batch), domain.ErrEmbedding)
	}

	// Order by the response-side index so output matches input order.
	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		domain.Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// truncate caps text at the model's token limit with 10% headroom, using a
// conservative estimator: 4 chars per token for ASCII, 1 char per token
// otherwise. Truncated output gets a trailing ellipsis.
func (e *Embedder) truncate(text string) string {
	budget := float64(e.descriptor.MaxTokens) * tokenHeadroom

	var tokens float64
	for i, r := range text {
		if r < unicode.MaxASCII {
			tokens += 0.25
		} else {
			tokens++
		}
		if tokens > budget {
			return text[:i] + "…"
		}
	}
	return text
}

// classifyAPIError maps provider failures onto domain sentinels.
// Responses mentioning "quota" and 401-equivalents are non-retryable.
func classifyAPIError(err error) error {
	status := 0
	msg := err.Error()

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
		msg = string(reqErr.Body)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
		msg = apiErr.Message
	}

	switch {
	case strings.Contains(strings.ToLower(msg), "quota") || status == 429:
		return fmt.Errorf("embedding API error %d: %s: %w", status, msg, domain.ErrQuotaExceeded)
	case status == 401 || status == 403:
		return fmt.Errorf("embedding API error %d: %s: %w", status, msg, domain.ErrAuthFailed)
	default:
		return fmt.Errorf("embedding request failed: %s: %w", msg, domain.ErrEmbedding)
	}
}

// linearBackOff waits retryDelay*attempt between retries.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func newLinearBackOff(delay time.Duration) *linearBackOff {
	return &linearBackOff{delay: delay}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.delay
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
