/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentsdoc_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/docbots/agentsdoc"
	"github.com/google/go-cmp/cmp"
)

// writeTree lays out a temp repo with the given files.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestMapChangedPaths(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"AGENTS.md":            "root guidance",
		"pkg/AGENTS.md":        "pkg guidance",
		"pkg/deep/AGENTS.md":   "deep guidance",
		"pkg/deep/thing.go":    "package deep",
		"pkg/other.go":         "package pkg",
		"docs/guide.md":        "guide",
		"cmd/tool/main.go":     "package main",
		"pkg/deep/sub/more.go": "package sub",
	})

	got := agentsdoc.MapChangedPaths(root, []string{
		"pkg/deep/thing.go",
		"pkg/deep/sub/more.go",
		"pkg/other.go",
		"docs/guide.md",
		"cmd/tool/main.go",
	})

	want := map[string][]string{
		// Nearest plus every ancestor AGENTS.md.
		"pkg/deep/AGENTS.md": {"pkg/deep/thing.go", "pkg/deep/sub/more.go"},
		"pkg/AGENTS.md":      {"pkg/deep/thing.go", "pkg/deep/sub/more.go", "pkg/other.go"},
		"AGENTS.md":          {"pkg/deep/thing.go", "pkg/deep/sub/more.go", "pkg/other.go", "docs/guide.md", "cmd/tool/main.go"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("MapChangedPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapChangedPaths_NoAgentsFiles(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"src/app.go": "package app"})

	got := agentsdoc.MapChangedPaths(root, []string{"src/app.go"})
	want := map[string][]string{"AGENTS.md": {"src/app.go"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("MapChangedPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapChangedPaths_DeletedFile(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"pkg/AGENTS.md": "pkg guidance"})

	// pkg/removed.go no longer exists; it still maps via its directory.
	got := agentsdoc.MapChangedPaths(root, []string{"pkg/removed.go"})
	want := map[string][]string{"pkg/AGENTS.md": {"pkg/removed.go"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("MapChangedPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestTargets(t *testing.T) {
	t.Parallel()
	got := agentsdoc.Targets(map[string][]string{
		"pkg/AGENTS.md": nil,
		"AGENTS.md":     nil,
		"a/b/AGENTS.md": nil,
	})
	want := []string{"AGENTS.md", "a/b/AGENTS.md", "pkg/AGENTS.md"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Targets() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsAgentsFile(t *testing.T) {
	t.Parallel()
	if !agentsdoc.IsAgentsFile("pkg/AGENTS.md") {
		t.Fatal("expected match for pkg/AGENTS.md")
	}
	if !agentsdoc.IsAgentsFile("AGENTS.md") {
		t.Fatal("expected match for AGENTS.md")
	}
	if agentsdoc.IsAgentsFile("pkg/agents.md") {
		t.Fatal("matching is case-sensitive")
	}
	if agentsdoc.IsAgentsFile("pkg/AGENTS.md.bak") {
		t.Fatal("unexpected match for backup file")
	}
}

func TestEnsureAlwaysInclude(t *testing.T) {
	t.Parallel()
	block := "## House rules\n\nRun the linter before pushing."

	t.Run("appends when missing", func(t *testing.T) {
		got := agentsdoc.EnsureAlwaysInclude("# AGENTS\n\nSome guidance.\n", block)
		if !strings.HasSuffix(got, block+"\n") {
			t.Fatalf("block not appended: %q", got)
		}
		if strings.Count(got, block) != 1 {
			t.Fatalf("expected exactly one occurrence, got %d", strings.Count(got, block))
		}
	})

	t.Run("no-op when present", func(t *testing.T) {
		text := "# AGENTS\n\n" + block + "\n\nMore guidance.\n"
		if got := agentsdoc.EnsureAlwaysInclude(text, block); got != text {
			t.Fatalf("expected unchanged text, got %q", got)
		}
	})

	t.Run("collapses duplicates to the first", func(t *testing.T) {
		text := "# AGENTS\n\n" + block + "\n\nMiddle.\n\n" + block + "\n"
		got := agentsdoc.EnsureAlwaysInclude(text, block)
		if n := strings.Count(got, block); n != 1 {
			t.Fatalf("expected exactly one occurrence, got %d: %q", n, got)
		}
		if !strings.Contains(got, "Middle.") {
			t.Fatalf("surrounding text lost: %q", got)
		}
		// The surviving copy is the first one.
		if strings.Index(got, block) > strings.Index(got, "Middle.") {
			t.Fatalf("expected first occurrence kept: %q", got)
		}
	})

	t.Run("empty block is a no-op", func(t *testing.T) {
		if got := agentsdoc.EnsureAlwaysInclude("text\n", "  \n"); got != "text\n" {
			t.Fatalf("expected no-op, got %q", got)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		got := agentsdoc.EnsureAlwaysInclude("", block)
		if got != block+"\n" {
			t.Fatalf("unexpected: %q", got)
		}
	})
}
