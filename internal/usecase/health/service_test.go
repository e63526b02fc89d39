package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct{ err error }

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	s := New(&mockPinger{}, &mockChecker{})

	report := s.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, report.Status)
	}
	if report.Checks["index"] != CheckOK || report.Checks["embedding"] != CheckOK {
		t.Errorf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_IndexDown(t *testing.T) {
	s := New(&mockPinger{err: errors.New("index is gone")}, &mockChecker{})

	report := s.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, report.Status)
	}
	if report.Checks["index"] != CheckError {
		t.Errorf("unexpected index check: %v", report.Checks)
	}
	if report.Checks["embedding"] != CheckOK {
		t.Errorf("unexpected embedding check: %v", report.Checks)
	}
}

func TestCheck_EmbeddingDown(t *testing.T) {
	s := New(&mockPinger{}, &mockChecker{err: errors.New("provider unreachable")})

	report := s.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, report.Status)
	}
}

func TestCheck_NilEmbeddingSkipped(t *testing.T) {
	s := New(&mockPinger{}, nil)

	report := s.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, report.Status)
	}
	if _, ok := report.Checks["embedding"]; ok {
		t.Error("embedding check must be skipped when no checker is configured")
	}
}
