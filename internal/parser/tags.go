package parser

import "strings"

// componentTags maps lowercased component names to their inferred tags.
// Components not listed here default to {"ui"}.
var componentTags = map[string][]string{
	"button":     {"form", "action", "ui", "interactive"},
	"input":      {"form", "data-entry", "ui"},
	"select":     {"form", "data-entry", "ui"},
	"checkbox":   {"form", "data-entry", "ui"},
	"radio":      {"form", "data-entry", "ui"},
	"switch":     {"form", "data-entry", "ui"},
	"slider":     {"form", "data-entry", "ui"},
	"upload":     {"form", "data-entry", "ui"},
	"form":       {"data-entry", "validation", "ui"},
	"table":      {"data-display", "list", "ui"},
	"modal":      {"feedback", "overlay", "ui"},
	"tooltip":    {"data-display", "overlay", "ui"},
	"popover":    {"data-display", "overlay", "ui"},
	"alert":      {"feedback", "message", "ui"},
	"progress":   {"feedback", "loading", "ui"},
	"spin":       {"feedback", "loading", "ui"},
	"card":       {"data-display", "ui"},
	"avatar":     {"data-display", "ui"},
	"badge":      {"data-display", "ui"},
	"tag":        {"data-display", "ui"},
	"menu":       {"navigation", "ui"},
	"breadcrumb": {"navigation", "ui"},
	"tabs":       {"navigation", "ui"},
	"dropdown":   {"navigation", "ui"},
	"pagination": {"navigation", "data-display", "ui"},
}

// universalTags are appended to every component.
var universalTags = []string{"react", "component"}

// inferTags returns the tag set for a PascalCase component name.
func inferTags(componentName string) []string {
	base, ok := componentTags[strings.ToLower(componentName)]
	if !ok {
		base = []string{"ui"}
	}
	tags := make([]string, 0, len(base)+len(universalTags))
	tags = append(tags, base...)
	tags = append(tags, universalTags...)
	return tags
}
