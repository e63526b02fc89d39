package domain

import (
	"encoding/json"
	"testing"
)

func TestCodegenRule_RagEnhanced(t *testing.T) {
	data := []byte(`{
		"type": "rag-enhanced",
		"namespace": "design-system",
		"searchConfig": {"topK": 7, "threshold": 0.6}
	}`)

	var r CodegenRule
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if r.Type != RuleRagEnhanced {
		t.Errorf("expected type rag-enhanced, got %s", r.Type)
	}
	if r.RagEnhanced == nil {
		t.Fatal("expected RagEnhanced body")
	}
	if r.RagEnhanced.Namespace != "design-system" {
		t.Errorf("unexpected namespace: %s", r.RagEnhanced.Namespace)
	}
	if r.RagEnhanced.SearchConfig.TopK != 7 || r.RagEnhanced.SearchConfig.Threshold != 0.6 {
		t.Errorf("unexpected search config: %+v", r.RagEnhanced.SearchConfig)
	}
}

func TestCodegenRule_OpaqueRoundTrip(t *testing.T) {
	data := []byte(`{"type":"file-structure","layout":{"src":["components","hooks"]}}`)

	var r CodegenRule
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Type != RuleFileStructure {
		t.Errorf("expected type file-structure, got %s", r.Type)
	}
	if r.RagEnhanced != nil {
		t.Error("non-rag rule must not decode a rag body")
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("opaque rule changed on round-trip:\ngot:  %s\nwant: %s", out, data)
	}
}

func TestCodegenRule_MissingType(t *testing.T) {
	var r CodegenRule
	if err := json.Unmarshal([]byte(`{"namespace":"x"}`), &r); err == nil {
		t.Fatal("expected error for rule without a type")
	}
}
