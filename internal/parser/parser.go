// Package parser walks a component source tree and emits canonical
// ComponentDoc records for indexing.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
)

const (
	docFileName  = "index.en-US.md"
	maxDescChars = 1000
	maxAPIChars  = 2000
	maxExamples  = 3
	maxExChars   = 1000
)

var relImportRegex = regexp.MustCompile(`from ['"]\.\./([^'"]+)['"]`)

// Parser extracts ComponentDoc records from a documentation tree.
type Parser struct {
	logger *zap.Logger
}

// New creates a parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseAll walks <sourceRoot>/components and parses every immediate
// subdirectory whose name does not start with "_". A failure to list the
// components directory is fatal; per-component failures are recorded in the
// returned slice and the walk continues.
//
// packageName overrides the manifest name; when empty, the "name" field of
// <sourceRoot>/package.json is used.
func (p *Parser) ParseAll(ctx context.Context, sourceRoot, packageName string) ([]domain.ParsedComponent, error) {
	componentsDir := filepath.Join(sourceRoot, "components")

	entries, err := os.ReadDir(componentsDir)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("list %s: %w", componentsDir, domain.ErrPathNotFound)
		case os.IsPermission(err):
			return nil, fmt.Errorf("list %s: %w", componentsDir, domain.ErrPermission)
		default:
			return nil, fmt.Errorf("list %s: %w", componentsDir, err)
		}
	}

	manifestName, version := readManifest(sourceRoot)
	if packageName == "" {
		packageName = manifestName
	}

	var out []domain.ParsedComponent
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("parse walk: %w", domain.ErrCancelled)
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		out = append(out, p.parseComponent(componentsDir, e.Name(), packageName, version))
	}

	p.logger.Debug("parsed component tree",
		zap.String("source_root", sourceRoot),
		zap.Int("components", len(out)),
	)
	return out, nil
}

// parseComponent extracts one ComponentDoc. Extraction steps degrade
// individually; a component with no documentation source at all is an error.
func (p *Parser) parseComponent(componentsDir, dirName, packageName, version string) domain.ParsedComponent {
	dir := filepath.Join(componentsDir, dirName)
	name := Capitalize(dirName)

	description, descFound := extractDescription(dir, name)
	api := extractAPI(dir)
	examples := extractExamples(dir)

	// A directory with neither a parseable doc file nor demos has nothing to
	// embed. Report it instead of indexing the bare fallback text.
	if !descFound && api == domain.NoAPIDoc && len(examples) == 0 {
		p.logger.Warn("component has no documentation", zap.String("component", name))
		return domain.ParsedComponent{
			Doc:      domain.EmptyDoc(packageName, name),
			FilePath: dir,
			Status:   domain.ParseError,
			Err:      fmt.Sprintf("no documentation found for component %s", name),
		}
	}

	doc := domain.ComponentDoc{
		PackageName:   packageName,
		ComponentName: name,
		Description:   description,
		API:           api,
		Examples:      examples,
		Tags:          inferTags(name),
		Version:       version,
		Dependencies:  extractDependencies(dir),
		UpdatedAt:     time.Now().UTC(),
	}

	return domain.ParsedComponent{Doc: doc, FilePath: dir, Status: domain.ParseSuccess}
}

// Capitalize converts a dash-separated directory name to PascalCase:
// "date-picker" -> "DatePicker".
func Capitalize(dirName string) string {
	segments := strings.Split(dirName, "-")
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteString(strings.ToUpper(s[:1]))
		b.WriteString(s[1:])
	}
	return b.String()
}

// extractDescription reads the slab between the first "---" separator and the
// first subsequent "## " heading of index.en-US.md. The second return value
// reports whether a real description was found; on any failure the fallback
// "<Name> component" is returned with found=false.
func extractDescription(dir, name string) (string, bool) {
	fallback := name + " component"

	data, err := os.ReadFile(filepath.Join(dir, docFileName))
	if err != nil {
		return fallback, false
	}

	lines := strings.Split(string(data), "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return fallback, false
	}

	var parts []string
	for _, line := range lines[start:] {
		if strings.HasPrefix(line, "## ") {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback, false
	}
	return truncate(strings.Join(parts, " "), maxDescChars), true
}

// extractAPI takes the slab from the first "## API" heading up to the next
// "## " heading that is not "## API".
func extractAPI(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, docFileName))
	if err != nil {
		return domain.NoAPIDoc
	}

	lines := strings.Split(string(data), "\n")
	var collected []string
	inAPI := false
	for _, line := range lines {
		isHeading := strings.HasPrefix(line, "## ")
		isAPIHeading := isHeading && strings.TrimSpace(line) == "## API"
		switch {
		case isAPIHeading:
			inAPI = true
			collected = append(collected, line)
		case inAPI && isHeading:
			return truncate(strings.TrimSpace(strings.Join(collected, "\n")), maxAPIChars)
		case inAPI:
			collected = append(collected, line)
		}
	}
	if !inAPI {
		return domain.NoAPIDoc
	}
	return truncate(strings.TrimSpace(strings.Join(collected, "\n")), maxAPIChars)
}

// extractExamples takes up to three .tsx demos in lexicographic order with
// import lines stripped. A missing demo directory yields no examples.
func extractExamples(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, "demo"))
	if err != nil {
		return nil
	}

	var examples []string
	for _, e := range entries {
		if len(examples) == maxExamples {
			break
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tsx") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "demo", e.Name()))
		if err != nil {
			continue
		}
		code := stripImports(string(data))
		if strings.TrimSpace(code) == "" {
			continue
		}
		examples = append(examples, truncate(code, maxExChars))
	}
	return examples
}

func stripImports(code string) string {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "import") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// extractDependencies scans index.ts for relative sibling imports and returns
// the PascalCase component names, in order of appearance.
func extractDependencies(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, "index.ts"))
	if err != nil {
		return nil
	}

	var deps []string
	seen := make(map[string]struct{})
	for _, m := range relImportRegex.FindAllStringSubmatch(string(data), -1) {
		segment, _, _ := strings.Cut(m[1], "/")
		name := Capitalize(segment)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		deps = append(deps, name)
	}
	return deps
}

// readManifest returns the package name and version from
// <sourceRoot>/package.json, defaulting to ("", "1.0.0").
func readManifest(sourceRoot string) (name, version string) {
	version = "1.0.0"

	data, err := os.ReadFile(filepath.Join(sourceRoot, "package.json"))
	if err != nil {
		return name, version
	}
	var manifest struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return name, version
	}
	if manifest.Version != "" {
		version = manifest.Version
	}
	return manifest.Name, version
}

// truncate clips s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
