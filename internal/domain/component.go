package domain

import "time"

// NoAPIDoc is the placeholder API text for components without an API section.
const NoAPIDoc = "API documentation not available"

// ComponentDoc is the canonical parsed record of a single UI component.
// PackageName is an opaque namespace tag and is preserved bit-identically.
type ComponentDoc struct {
	PackageName   string    `json:"packageName"`
	ComponentName string    `json:"componentName"`
	Description   string    `json:"description"`
	API           string    `json:"api"`
	Examples      []string  `json:"examples"`
	Tags          []string  `json:"tags"`
	Version       string    `json:"version"`
	Dependencies  []string  `json:"dependencies"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasContent reports whether the component can produce at least one vector.
func (d *ComponentDoc) HasContent() bool {
	if d.Description != "" {
		return true
	}
	if d.API != "" && d.API != NoAPIDoc {
		return true
	}
	return len(d.Examples) > 0
}

// EmptyDoc returns the minimal record emitted for a failed parse.
func EmptyDoc(packageName, componentName string) ComponentDoc {
	return ComponentDoc{
		PackageName:   packageName,
		ComponentName: componentName,
		API:           NoAPIDoc,
		Version:       "1.0.0",
		UpdatedAt:     time.Now().UTC(),
	}
}

// ParseStatus reports the outcome of parsing one component directory.
type ParseStatus string

// Parse outcomes.
const (
	ParseSuccess ParseStatus = "success"
	ParseError   ParseStatus = "error"
)

// ParsedComponent is one parser result. Err is set only when Status is ParseError.
type ParsedComponent struct {
	Doc      ComponentDoc
	FilePath string
	Status   ParseStatus
	Err      string
}
