package domain

import (
	"encoding/json"
	"fmt"
)

// RuleType discriminates CodegenRule variants.
type RuleType string

// Known rule variants. The core reads only RuleRagEnhanced; the rest
// round-trip opaquely for the surrounding code-generation workflow.
const (
	RulePublicComponents  RuleType = "public-components"
	RuleStyles            RuleType = "styles"
	RulePrivateComponents RuleType = "private-components"
	RuleFileStructure     RuleType = "file-structure"
	RuleAttentionRules    RuleType = "attention-rules"
	RuleRagEnhanced       RuleType = "rag-enhanced"
)

// RagSearchConfig carries the search defaults of a rag-enhanced rule.
type RagSearchConfig struct {
	TopK      int     `json:"topK,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// RagEnhancedRule is the only variant the core interprets.
type RagEnhancedRule struct {
	Namespace    string          `json:"namespace"`
	SearchConfig RagSearchConfig `json:"searchConfig"`
}

// CodegenRule is a tagged variant discriminated by "type". Unknown variants
// keep their raw body and re-marshal unchanged.
type CodegenRule struct {
	Type        RuleType
	RagEnhanced *RagEnhancedRule
	raw         json.RawMessage
}

// UnmarshalJSON decodes the discriminator and, for rag-enhanced rules,
// the variant fields. All other variants are retained opaquely.
func (r *CodegenRule) UnmarshalJSON(data []byte) error {
	var head struct {
		Type RuleType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode rule type: %w", err)
	}
	if head.Type == "" {
		return fmt.Errorf("codegen rule is missing a type")
	}

	r.Type = head.Type
	r.raw = append(json.RawMessage(nil), data...)
	r.RagEnhanced = nil

	if head.Type == RuleRagEnhanced {
		var body RagEnhancedRule
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("decode rag-enhanced rule: %w", err)
		}
		r.RagEnhanced = &body
	}
	return nil
}

// MarshalJSON re-emits the original body so opaque variants survive untouched.
func (r CodegenRule) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(struct {
		Type RuleType `json:"type"`
	}{Type: r.Type})
}
