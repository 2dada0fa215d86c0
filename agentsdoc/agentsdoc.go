/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agentsdoc maps changed repository paths to the AGENTS.md documents
// that govern them and enforces the required always-include block.
package agentsdoc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileName is the per-directory guidance document the updater maintains.
const FileName = "AGENTS.md"

// IsAgentsFile reports whether the repo-relative path names an AGENTS.md.
func IsAgentsFile(path string) bool {
	return filepath.Base(path) == FileName
}

// MapChangedPaths returns, for each AGENTS.md that should be refreshed, the
// changed paths that impact it. Targets are repo-relative.
//
// For every changed path the nearest AGENTS.md (walking up from the file's
// directory) and all ancestor AGENTS.md files up to the repo root are
// targeted. Paths that no longer exist on disk (deletes, renames) resolve
// from their parent directory. When the walk finds no AGENTS.md at all, the
// repo-root AGENTS.md is targeted so it can be created.
func MapChangedPaths(root string, changed []string) map[string][]string {
	mapping := make(map[string][]string)

	for _, rel := range changed {
		dir := filepath.Dir(rel)
		if fi, err := os.Stat(filepath.Join(root, rel)); err == nil && fi.IsDir() {
			dir = rel
		}

		found := false
		for d := dir; ; d = filepath.Dir(d) {
			if d == "." || d == "/" {
				d = ""
			}
			candidate := filepath.Join(d, FileName)
			if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
				mapping[candidate] = append(mapping[candidate], rel)
				found = true
			}
			if d == "" {
				break
			}
		}

		if !found {
			mapping[FileName] = append(mapping[FileName], rel)
		}
	}

	return mapping
}

// Targets returns the mapped AGENTS.md paths in deterministic order.
func Targets(mapping map[string][]string) []string {
	targets := make([]string, 0, len(mapping))
	for t := range mapping {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// EnsureAlwaysInclude guarantees the required block appears exactly once in
// the document: absent blocks are appended, present blocks are left alone,
// and duplicate occurrences are collapsed to the first. An empty block is a
// no-op.
func EnsureAlwaysInclude(text, block string) string {
	block = strings.TrimSpace(block)
	if block == "" {
		return text
	}

	switch strings.Count(text, block) {
	case 0:
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if text != "" {
			text += "\n"
		}
		return text + block + "\n"
	case 1:
		return text
	}

	// Collapse duplicates, keeping the first occurrence in place.
	first := strings.Index(text, block)
	head := text[:first+len(block)]
	tail := strings.ReplaceAll(text[first+len(block):], block, "")
	// Squeeze the blank runs the removals leave behind.
	for strings.Contains(tail, "\n\n\n") {
		tail = strings.ReplaceAll(tail, "\n\n\n", "\n\n")
	}
	return head + tail
}
