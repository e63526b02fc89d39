package domain

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"slices"
)

// FacetType names the text facet a vector document was built from.
type FacetType string

// Facet types.
const (
	FacetDescription FacetType = "description"
	FacetAPI         FacetType = "api"
	FacetExample     FacetType = "example"
	FacetUsage       FacetType = "usage"
)

// Metadata carries the component identity of a vector document.
type Metadata struct {
	ComponentName string    `json:"componentName"`
	PackageName   string    `json:"packageName"`
	Type          FacetType `json:"type"`
	Tags          []string  `json:"tags"`
	Version       string    `json:"version"`
}

// VectorDocument is the stored unit of the index: one embedded facet text.
type VectorDocument struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// DocumentID derives the content-addressed identifier
// "<componentName>-<facet>-<md5(componentName+facet+content)[:8]>".
// Stable under unchanged input.
func DocumentID(componentName string, facet FacetType, content string) string {
	h := md5.Sum([]byte(componentName + string(facet) + content)) //nolint:gosec
	return componentName + "-" + string(facet) + "-" + hex.EncodeToString(h[:])[:8]
}

// Filters narrows a search to matching metadata. Zero values mean "any".
type Filters struct {
	PackageName   string    `json:"packageName,omitempty"`
	ComponentName string    `json:"componentName,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Type          FacetType `json:"type,omitempty"`
	Version       string    `json:"version,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f *Filters) IsEmpty() bool {
	return f == nil || (f.PackageName == "" && f.ComponentName == "" &&
		len(f.Tags) == 0 && f.Type == "" && f.Version == "")
}

// Matches reports whether metadata passes the filters.
// The tag filter passes if ANY requested tag is present.
func (m *Metadata) Matches(f *Filters) bool {
	if f.IsEmpty() {
		return true
	}
	if f.PackageName != "" && m.PackageName != f.PackageName {
		return false
	}
	if f.ComponentName != "" && m.ComponentName != f.ComponentName {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.Version != "" && m.Version != f.Version {
		return false
	}
	if len(f.Tags) > 0 {
		any := false
		for _, t := range f.Tags {
			if slices.Contains(m.Tags, t) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}
