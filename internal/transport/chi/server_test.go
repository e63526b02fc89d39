package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	healthuc "github.com/kailas-cloud/rci/internal/usecase/health"
	searchuc "github.com/kailas-cloud/rci/internal/usecase/search"
	statusuc "github.com/kailas-cloud/rci/internal/usecase/status"
	syncuc "github.com/kailas-cloud/rci/internal/usecase/sync"
)

// --- Mocks ---

// fakeStore backs search, sync, status and health at once.
type fakeStore struct {
	hits      []domain.SearchHit
	searchErr error
	statsErr  error
	pingErr   error
}

func (f *fakeStore) TopK(_ context.Context, _ []float32, _ int, _ float64) ([]domain.SearchHit, error) {
	return f.hits, f.searchErr
}

func (f *fakeStore) TopKFiltered(
	_ context.Context, _ []float32, _ *domain.Filters, _ int, _ float64,
) ([]domain.SearchHit, error) {
	return f.hits, f.searchErr
}

func (f *fakeStore) AddBatch(_ context.Context, _ []domain.VectorDocument) error { return nil }
func (f *fakeStore) Clear(_ context.Context) error                               { return nil }

func (f *fakeStore) Stats(_ context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{TotalComponents: 2, TotalDocuments: 5}, f.statsErr
}

func (f *fakeStore) Ping(_ context.Context) error { return f.pingErr }

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) HealthCheck(_ context.Context) error { return nil }

type fakeParser struct{ err error }

func (f *fakeParser) ParseAll(_ context.Context, _, _ string) ([]domain.ParsedComponent, error) {
	return nil, f.err
}

type noopCache struct{}

func (noopCache) Clear() {}

func newTestRouter(t *testing.T, store *fakeStore, embed *fakeEmbedder, parser *fakeParser) http.Handler {
	t.Helper()

	searchSvc := searchuc.New(store, embed, nil, zap.NewNop())
	syncSvc := syncuc.New(parser, store, embed, noopCache{}, zap.NewNop()).
		WithDefaults("/src", "ui")
	statusSvc := statusuc.New(store, nil, statusuc.Config{VectorStore: "file"}, zap.NewNop())
	healthSvc := healthuc.New(store, embed)

	srv := NewServer(searchSvc, syncSvc, statusSvc, healthSvc, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSearchEndpoint_OK(t *testing.T) {
	store := &fakeStore{hits: []domain.SearchHit{{
		Document: domain.VectorDocument{
			Content: "A modal dialog",
			Metadata: domain.Metadata{
				ComponentName: "Modal",
				PackageName:   "ui",
				Type:          domain.FacetDescription,
			},
		},
		Score: 0.8,
	}}}
	h := newTestRouter(t, store, &fakeEmbedder{}, &fakeParser{})

	rr := doJSON(t, h, "POST", "/rag/search", `{"query":"modal dialog"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var env struct {
		Success bool                  `json:"success"`
		Data    domain.SearchResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.Success {
		t.Error("expected success envelope")
	}
	if len(env.Data.Components) != 1 || env.Data.Components[0].ComponentName != "Modal" {
		t.Errorf("unexpected components: %+v", env.Data.Components)
	}
}

func TestSearchEndpoint_Validation(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{})

	cases := []struct {
		name string
		body string
	}{
		{"missing query", `{}`},
		{"topK too large", `{"query":"x","topK":51}`},
		{"negative topK", `{"query":"x","topK":-1}`},
		{"threshold above one", `{"query":"x","threshold":1.5}`},
		{"malformed body", `{"query":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, "POST", "/rag/search", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400: %s", rr.Code, rr.Body.String())
			}
			var env envelope
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if env.Success || env.Error == "" {
				t.Errorf("unexpected error envelope: %+v", env)
			}
		})
	}
}

func TestSearchEndpoint_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		store    *fakeStore
		embed    *fakeEmbedder
		wantCode int
		wantWire string
	}{
		{"quota", &fakeStore{}, &fakeEmbedder{err: domain.ErrQuotaExceeded}, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"auth", &fakeStore{}, &fakeEmbedder{err: domain.ErrAuthFailed}, http.StatusUnauthorized, "AUTH_FAILED"},
		{"embedding", &fakeStore{}, &fakeEmbedder{err: domain.ErrEmbedding}, http.StatusServiceUnavailable, "EMBEDDING_ERROR"},
		{"store", &fakeStore{searchErr: domain.ErrVectorStore}, &fakeEmbedder{}, http.StatusInternalServerError, "VECTOR_STORE_ERROR"},
		{"cancelled", &fakeStore{searchErr: domain.ErrCancelled}, &fakeEmbedder{}, http.StatusInternalServerError, "CANCELLED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(t, tc.store, tc.embed, &fakeParser{})
			rr := doJSON(t, h, "POST", "/rag/search", `{"query":"modal"}`)

			if rr.Code != tc.wantCode {
				t.Errorf("got %d, want %d: %s", rr.Code, tc.wantCode, rr.Body.String())
			}
			var env envelope
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if env.Code != tc.wantWire {
				t.Errorf("wire code: got %q, want %q", env.Code, tc.wantWire)
			}
		})
	}
}

func TestSyncEndpoint_EmptyBody(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{})

	rr := doJSON(t, h, "POST", "/rag/sync", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var env struct {
		Success bool                `json:"success"`
		Data    domain.SyncResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Data.Status != domain.SyncSuccess {
		t.Errorf("unexpected sync status: %s", env.Data.Status)
	}
}

func TestSyncEndpoint_PathNotFound(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{err: domain.ErrPathNotFound})

	rr := doJSON(t, h, "POST", "/rag/sync", `{"sourcePath":"/nope"}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404: %s", rr.Code, rr.Body.String())
	}
	var env envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if env.Code != "" {
		t.Errorf("path errors have no stable code, got %q", env.Code)
	}
	if env.Error != domain.ErrPathNotFound.Error() {
		t.Errorf("unexpected message: %q", env.Error)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{})

	rr := doJSON(t, h, "GET", "/rag/status", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var env struct {
		Success bool            `json:"success"`
		Data    statusuc.Report `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.Data.Available || env.Data.Stats == nil || env.Data.Stats.TotalDocuments != 5 {
		t.Errorf("unexpected status report: %+v", env.Data)
	}
}

func TestClearCacheEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{})

	rr := doJSON(t, h, "POST", "/rag/cache/clear", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Data["status"] != "cleared" {
		t.Errorf("unexpected body: %v", env.Data)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeStore{}, &fakeEmbedder{}, &fakeParser{})
	rr := doJSON(t, h, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var report healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != healthuc.Healthy {
		t.Errorf("unexpected status: %s", report.Status)
	}
}

func TestHealthEndpoint_Degraded503(t *testing.T) {
	store := &fakeStore{pingErr: domain.ErrVectorStore}
	h := newTestRouter(t, store, &fakeEmbedder{}, &fakeParser{})

	rr := doJSON(t, h, "GET", "/health", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
	var report healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != healthuc.Degraded {
		t.Errorf("unexpected status: %s", report.Status)
	}
}
