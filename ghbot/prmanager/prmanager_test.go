/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v84/github"
)

type botState struct {
	Targets []string `json:"targets"`
	HeadSHA string   `json:"head_sha"`
}

func newTestManager(t *testing.T, mux *http.ServeMux) *Manager[botState] {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parsing base url: %v", err)
	}
	client.BaseURL = base

	m, err := New[botState](client, "octo", "widgets", "docbot")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return m
}

// gqlPR responds to the open-PR-by-head-branch query with the given nodes.
func gqlPR(nodes string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"repository": {"pullRequests": {"nodes": [%s]}}}}`, nodes)
	}
}

func TestUpsert_CreatesWhenMissing(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", gqlPR(""))

	var created github.NewPullRequest
	mux.HandleFunc("POST /repos/octo/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			t.Errorf("decoding create request: %v", err)
		}
		fmt.Fprint(w, `{"number": 42, "html_url": "https://github.com/octo/widgets/pull/42"}`)
	})
	var labels []string
	mux.HandleFunc("POST /repos/octo/widgets/issues/42/labels", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
			t.Errorf("decoding labels request: %v", err)
		}
		fmt.Fprint(w, `[]`)
	})

	m := newTestManager(t, mux)

	changed := false
	state := &botState{Targets: []string{"AGENTS.md"}, HeadSHA: "abc123"}
	prURL, err := m.Upsert(context.Background(), Spec{
		Title:      "Update AGENTS.md guidance",
		Body:       "Refreshes stale guidance.",
		HeadBranch: "docbot/agents",
		BaseBranch: "main",
		Labels:     []string{"documentation"},
	}, state, func(ctx context.Context, headBranch string) error {
		if headBranch != "docbot/agents" {
			t.Errorf("unexpected branch: %s", headBranch)
		}
		changed = true
		return nil
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if !changed {
		t.Fatal("makeChanges was not invoked")
	}
	if prURL != "https://github.com/octo/widgets/pull/42" {
		t.Fatalf("unexpected URL: %s", prURL)
	}
	if created.GetHead() != "docbot/agents" || created.GetBase() != "main" {
		t.Fatalf("unexpected head/base: %s/%s", created.GetHead(), created.GetBase())
	}
	if !strings.Contains(created.GetBody(), "skip:docbot") {
		t.Fatal("body should mention the skip label")
	}
	if !strings.Contains(created.GetBody(), "<!-- docbot-state:") {
		t.Fatal("body should embed machine state")
	}
	if len(labels) != 1 || labels[0] != "documentation" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestUpsert_NoopWhenStateMatches(t *testing.T) {
	t.Parallel()
	state := &botState{Targets: []string{"AGENTS.md"}, HeadSHA: "abc123"}

	m := newTestManager(t, http.NewServeMux())
	body, err := m.embed("Existing body.", state)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", gqlPR(fmt.Sprintf(
		`{"number": 42, "url": "https://github.com/octo/widgets/pull/42", "body": %q, "labels": {"nodes": []}}`, body)))

	m = newTestManager(t, mux)
	prURL, err := m.Upsert(context.Background(), Spec{
		Title:      "Update AGENTS.md guidance",
		Body:       "Refreshes stale guidance.",
		HeadBranch: "docbot/agents",
		BaseBranch: "main",
	}, state, func(ctx context.Context, headBranch string) error {
		t.Fatal("makeChanges must not run when state matches")
		return nil
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if prURL != "https://github.com/octo/widgets/pull/42" {
		t.Fatalf("unexpected URL: %s", prURL)
	}
}

func TestUpsert_UpdatesWhenStateDiffers(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, http.NewServeMux())
	oldBody, err := m.embed("Old body.", &botState{HeadSHA: "old000"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", gqlPR(fmt.Sprintf(
		`{"number": 42, "url": "https://github.com/octo/widgets/pull/42", "body": %q, "labels": {"nodes": []}}`, oldBody)))

	var edited github.PullRequest
	mux.HandleFunc("PATCH /repos/octo/widgets/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&edited); err != nil {
			t.Errorf("decoding edit request: %v", err)
		}
		fmt.Fprint(w, `{"number": 42}`)
	})

	m = newTestManager(t, mux)
	changed := false
	_, err = m.Upsert(context.Background(), Spec{
		Title:      "Update AGENTS.md guidance",
		Body:       "New body.",
		HeadBranch: "docbot/agents",
		BaseBranch: "main",
	}, &botState{HeadSHA: "new111"}, func(ctx context.Context, headBranch string) error {
		changed = true
		return nil
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if !changed {
		t.Fatal("makeChanges was not invoked")
	}
	if !strings.Contains(edited.GetBody(), "new111") {
		t.Fatal("edited body should embed the new state")
	}
}

func TestUpsert_RespectsSkipLabel(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", gqlPR(
		`{"number": 42, "url": "https://github.com/octo/widgets/pull/42", "body": "", "labels": {"nodes": [{"name": "skip:docbot"}]}}`))

	m := newTestManager(t, mux)
	_, err := m.Upsert(context.Background(), Spec{
		HeadBranch: "docbot/agents",
		BaseBranch: "main",
	}, &botState{}, func(ctx context.Context, headBranch string) error {
		t.Fatal("makeChanges must not run under the skip label")
		return nil
	})
	if !errors.Is(err, ErrSkipRequested) {
		t.Fatalf("expected ErrSkipRequested, got: %v", err)
	}
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, http.NewServeMux())

	state := &botState{Targets: []string{"AGENTS.md", "pkg/AGENTS.md"}, HeadSHA: "abc123"}
	body, err := m.embed("Human-facing text.", state)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	got, err := m.extract(body)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.HeadSHA != state.HeadSHA || len(got.Targets) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := m.extract("no markers here"); err == nil {
		t.Fatal("expected error for missing markers")
	}
}

func TestCommentOnce(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()

	posted := 0
	mux.HandleFunc("GET /repos/octo/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if posted > 0 {
			fmt.Fprint(w, `[{"body": "Suggested update.\n\n<!-- docbot-comment: AGENTS.md -->"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("POST /repos/octo/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		posted++
		fmt.Fprint(w, `{"id": 1}`)
	})

	m := newTestManager(t, mux)
	ctx := context.Background()

	if err := m.CommentOnce(ctx, 7, "AGENTS.md", "Suggested update."); err != nil {
		t.Fatalf("CommentOnce() error: %v", err)
	}
	if err := m.CommentOnce(ctx, 7, "AGENTS.md", "Suggested update."); err != nil {
		t.Fatalf("CommentOnce() rerun error: %v", err)
	}
	if posted != 1 {
		t.Fatalf("expected exactly one posted comment, got %d", posted)
	}
}
