/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"fmt"
	"sort"
	"strings"
)

// Categories are the Keep a Changelog entry categories, in canonical order.
var Categories = []string{"Added", "Changed", "Fixed", "Deprecated", "Removed", "Security"}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Entry is a single changelog bullet. The jsonschema tags double as the
// structured-output contract for LLM-generated entries.
type Entry struct {
	// Category is one of the Keep a Changelog categories.
	Category string `json:"category" jsonschema:"required,enum=Added,enum=Changed,enum=Fixed,enum=Deprecated,enum=Removed,enum=Security"`
	// Summary is one imperative sentence aimed at end users.
	Summary string `json:"summary" jsonschema:"required,maxLength=240"`
	// Scope is the top-level directory most affected, when one stands out.
	Scope string `json:"scope,omitempty"`
	// Breaking marks a breaking change.
	Breaking bool `json:"breaking" jsonschema:"required"`
	// Migration describes the upgrade path for breaking changes.
	Migration string `json:"migration,omitempty"`
	// References are PR/issue/author references rendered after the summary.
	References []string `json:"references" jsonschema:"required"`
}

// AddReferences merges refs into the entry's references, deduplicated and
// sorted.
func (e *Entry) AddReferences(refs ...string) {
	seen := make(map[string]struct{}, len(e.References)+len(refs))
	for _, r := range e.References {
		seen[r] = struct{}{}
	}
	for _, r := range refs {
		seen[r] = struct{}{}
	}
	merged := make([]string, 0, len(seen))
	for r := range seen {
		merged = append(merged, r)
	}
	sort.Strings(merged)
	e.References = merged
}

// Render produces the bullet (and, for breaking changes with a migration
// note, its indented follow-up line), newline-terminated.
func (e Entry) Render() string {
	parts := make([]string, 0, 3)
	if e.Scope != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Scope))
	}
	if e.Breaking {
		parts = append(parts, "⚠️ BREAKING")
	}
	if e.Summary != "" {
		parts = append(parts, e.Summary)
	}

	line := " - " + strings.Join(parts, " ")
	if len(e.References) > 0 {
		line += " (" + strings.Join(e.References, ", ") + ")"
	}
	line += "\n"

	if e.Breaking && e.Migration != "" {
		line += fmt.Sprintf("   - **Migration:** %s\n", e.Migration)
	}
	return line
}
