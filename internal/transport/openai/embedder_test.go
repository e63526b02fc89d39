package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	"github.com/kailas-cloud/rci/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterCoreMetrics()
	os.Exit(m.Run())
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "text-embedding-3-small",
		Provider:   "openai",
		RetryDelay: time.Millisecond,
		Logger:     zap.NewNop(),
	})
	e.pause = time.Millisecond
	return e
}

func writeVectors(w http.ResponseWriter, vectors map[int][]float32) {
	resp := embeddingResponse{Object: "list", Model: "text-embedding-3-small"}
	for idx, vec := range vectors {
		resp.Data = append(resp.Data, embeddingData{
			Object: "embedding", Embedding: vec, Index: idx,
		})
	}
	resp.Usage.TotalTokens = 10
	_ = json.NewEncoder(w).Encode(resp)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "api_error"},
	})
}

func TestBatchEmbed_OrderedAndNormalized(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		// Answer out of order; the embedder must re-sort by index.
		writeVectors(w, map[int][]float32{
			1: {0, 5, 0},
			0: {3, 0, 0},
		})
	})

	out, err := e.BatchEmbed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(out))
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Errorf("vectors not re-sorted by index: %v", out)
	}
	for i, v := range out {
		var sum float64
		for _, f := range v {
			sum += float64(f) * float64(f)
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
			t.Errorf("vector %d is not unit-length: %v", i, v)
		}
	}
}

func TestBatchEmbed_FiltersWhitespace(t *testing.T) {
	var gotInputs atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInputs.Store(int32(len(req.Input)))
		writeVectors(w, map[int][]float32{0: {1, 0}})
	})

	out, err := e.BatchEmbed(context.Background(), []string{"  ", "hello", "\t\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(out))
	}
	if gotInputs.Load() != 1 {
		t.Errorf("expected 1 text sent to provider, got %d", gotInputs.Load())
	}
}

func TestBatchEmbed_AllFiltered(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := e.BatchEmbed(context.Background(), []string{"  ", "\n"})
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestBatchEmbed_EmptyInput(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	out, err := e.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no vectors, got %d", len(out))
	}
}

func TestBatchEmbed_SplitsBatches(t *testing.T) {
	var calls atomic.Int32
	var sizes []int
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sizes = append(sizes, len(req.Input))

		vectors := make(map[int][]float32, len(req.Input))
		for i := range req.Input {
			vectors[i] = []float32{1, 0}
		}
		writeVectors(w, vectors)
	})

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	out, err := e.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 150 {
		t.Fatalf("expected 150 vectors, got %d", len(out))
	}
	if calls.Load() != 2 || sizes[0] != 100 || sizes[1] != 50 {
		t.Errorf("expected batches of 100 and 50, got %v", sizes)
	}
}

func TestBatchEmbed_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeAPIError(w, http.StatusInternalServerError, "transient failure")
			return
		}
		writeVectors(w, map[int][]float32{0: {1, 0}})
	})

	out, err := e.BatchEmbed(context.Background(), []string{"retry me"})
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(out))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestBatchEmbed_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusInternalServerError, "persistent failure")
	})

	_, err := e.BatchEmbed(context.Background(), []string{"doomed"})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if calls.Load() != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, calls.Load())
	}
}

func TestBatchEmbed_QuotaNotRetried(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusTooManyRequests, "You exceeded your current quota")
	})

	_, err := e.BatchEmbed(context.Background(), []string{"over budget"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("quota errors must not be retried, got %d calls", calls.Load())
	}
}

func TestBatchEmbed_AuthNotRetried(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusUnauthorized, "invalid api key")
	})

	_, err := e.BatchEmbed(context.Background(), []string{"who am i"})
	if !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth errors must not be retried, got %d calls", calls.Load())
	}
}

func TestTruncate(t *testing.T) {
	e := NewEmbedder(&Config{
		APIKey: "k",
		Model:  "text-embedding-3-small",
		Logger: zap.NewNop(),
	})

	short := "a short text"
	if got := e.truncate(short); got != short {
		t.Errorf("short text must pass through, got %q", got)
	}

	// ASCII estimator: 0.25 tokens per char, budget 8192*0.9 tokens.
	long := strings.Repeat("a", 50_000)
	got := e.truncate(long)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated text must end with an ellipsis")
	}
	if len(got) >= len(long) {
		t.Errorf("expected truncation, got %d chars", len(got))
	}

	// Non-ASCII counts a full token per rune, so it truncates much earlier.
	wide := strings.Repeat("界", 10_000)
	gotWide := e.truncate(wide)
	if !strings.HasSuffix(gotWide, "…") {
		t.Fatalf("wide text must be truncated")
	}
	if len(gotWide) >= len(wide) {
		t.Errorf("expected wide text shorter than input")
	}
	if len([]rune(gotWide)) >= len([]rune(got)) {
		t.Errorf("wide text should truncate earlier than ASCII: %d vs %d runes",
			len([]rune(gotWide)), len([]rune(got)))
	}
}

func TestLinearBackOff(t *testing.T) {
	b := newLinearBackOff(100 * time.Millisecond)
	if d := b.NextBackOff(); d != 100*time.Millisecond {
		t.Errorf("first delay: expected 100ms, got %v", d)
	}
	if d := b.NextBackOff(); d != 200*time.Millisecond {
		t.Errorf("second delay: expected 200ms, got %v", d)
	}
	b.Reset()
	if d := b.NextBackOff(); d != 100*time.Millisecond {
		t.Errorf("delay after reset: expected 100ms, got %v", d)
	}
}
