/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelogbot

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"chainguard.dev/docbots/changelog"
	"chainguard.dev/docbots/ghbot/prcontext"
	"chainguard.dev/docbots/llm"
	"github.com/chainguard-dev/clog"
)

// prBodyCap bounds how much of the PR body reaches the prompt.
const prBodyCap = 4000

// summarizeCap bounds the changed-file listing in the prompt.
const summarizeCap = 25

const entrySystemPrompt = `You are writing ONE bullet for a CHANGELOG in Keep a Changelog style.`

var entryPromptTemplate = template.Must(template.New("entry").Parse(`Constraints:
- One sentence, imperative mood, at most 20 words, no trailing period
- Audience: end users (not maintainers)
- Prefer user-visible impact over implementation detail
- If labels contain 'breaking-change' or the PR body includes 'BREAKING CHANGE', set breaking=true and include a brief 'migration' string
- Category must be one of: Added, Changed, Fixed, Deprecated, Removed, Security
- If most files share a top-level directory, use it as 'scope'

Input
PR #{{.Number}} by @{{.Author}}
Title: {{.Title}}
Labels: {{.Labels}}
Likely scope: {{.Scope}}

PR body (truncated):
{{.Body}}

Changed files (status path +/-):
{{.Files}}`))

type entryPromptData struct {
	Number int
	Author string
	Title  string
	Labels string
	Scope  string
	Body   string
	Files  string
}

// generateEntry produces the changelog entry for the PR. A model failure
// degrades to a deterministic entry built from the PR title; the run never
// fails on the model. References and breaking detection are normalized either
// way.
func generateEntry(ctx context.Context, completer llm.Completer, prCtx *prcontext.Context) changelog.Entry {
	log := clog.FromContext(ctx).With("pr", prCtx.PR.Number)

	scope := prcontext.ScopeGuess(prCtx.Files)
	entry, err := modelEntry(ctx, completer, prCtx, scope)
	if err != nil {
		log.Warnf("Model entry failed, using fallback: %v", err)
		entry = fallbackEntry(prCtx, scope)
	}

	if !changelog.ValidCategory(entry.Category) {
		log.Warnf("Model returned invalid category %q, using Changed", entry.Category)
		entry.Category = "Changed"
	}
	if strings.TrimSpace(entry.Summary) == "" {
		entry.Summary = truncate(prCtx.PR.Title, 200)
	}
	if isBreaking(prCtx) {
		entry.Breaking = true
	}
	entry.AddReferences(fmt.Sprintf("#%d", prCtx.PR.Number), "@"+prCtx.PR.Author)
	return entry
}

func modelEntry(ctx context.Context, completer llm.Completer, prCtx *prcontext.Context, scope string) (changelog.Entry, error) {
	labels := strings.Join(prCtx.PR.Labels, ", ")
	if labels == "" {
		labels = "(none)"
	}
	promptScope := scope
	if promptScope == "" {
		promptScope = "(none)"
	}

	var prompt strings.Builder
	if err := entryPromptTemplate.Execute(&prompt, entryPromptData{
		Number: prCtx.PR.Number,
		Author: prCtx.PR.Author,
		Title:  prCtx.PR.Title,
		Labels: labels,
		Scope:  promptScope,
		Body:   truncate(prCtx.PR.Body, prBodyCap),
		Files:  prcontext.SummarizeFiles(prCtx.Files, summarizeCap),
	}); err != nil {
		return changelog.Entry{}, fmt.Errorf("rendering prompt: %w", err)
	}

	return llm.Generate[changelog.Entry](ctx, completer, llm.Request{
		System:     entrySystemPrompt,
		Prompt:     prompt.String(),
		SchemaName: "changelog_entry",
	})
}

// fallbackEntry is the deterministic entry used when the model is
// unavailable.
func fallbackEntry(prCtx *prcontext.Context, scope string) changelog.Entry {
	return changelog.Entry{
		Category: "Changed",
		Summary:  truncate(strings.TrimSpace(prCtx.PR.Title), 200),
		Scope:    scope,
	}
}

// isBreaking reports whether the PR declares a breaking change via label or
// body marker.
func isBreaking(prCtx *prcontext.Context) bool {
	return prCtx.HasLabel("breaking-change") || strings.Contains(prCtx.PR.Body, "BREAKING CHANGE")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
