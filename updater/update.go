/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package updater

import (
	"context"
	"strings"
	"text/template"

	"chainguard.dev/docbots/agentsdoc"
	"chainguard.dev/docbots/llm"
	"github.com/chainguard-dev/clog"
)

// Update is the structured response for a single AGENTS.md rewrite.
type Update struct {
	// UpdatedContent is the full document after edits.
	UpdatedContent string `json:"updated_content" jsonschema:"required,description=Full AGENTS.md content after edits"`
	// Summary explains the edits in a line or two.
	Summary string `json:"summary" jsonschema:"required,maxLength=280,description=One or two lines summarizing the edits"`
}

const updateSystemPrompt = `You are updating a repository AGENTS.md contributor-guidance file. Maintain its tone and structure, keep bullets concise.`

var updatePromptTemplate = template.Must(template.New("update").Parse(`Goals:
- Reflect notable changes implied by the impacted files.
- Clarify scope rules and any coding or run tips relevant to those files.
- Keep instructions actionable; avoid fluff.
- Preserve existing content unless adjustments are clearly beneficial.
{{- if .AlwaysInclude}}
- Ensure the following required block is included verbatim exactly once:

{{.AlwaysInclude}}
{{- end}}

Inputs
- File: {{.Path}}
- Impacted files:
{{- range .Impacted}}
- {{.}}
{{- end}}

Existing content starts after this line:
--- BEGIN CURRENT AGENTS.md ---
{{.Current}}
--- END CURRENT AGENTS.md ---`))

type updatePromptData struct {
	Path          string
	Current       string
	Impacted      []string
	AlwaysInclude string
}

// generateUpdate asks the model for a rewrite of target and returns the final
// content with the always-include block enforced, plus a rationale. Any model
// failure degrades to keeping the current content with enforcement only; the
// run itself never fails on the model.
func generateUpdate(ctx context.Context, completer llm.Completer, target, current string, impacted []string, alwaysInclude string) (string, string) {
	log := clog.FromContext(ctx).With("target", target)

	var prompt strings.Builder
	err := updatePromptTemplate.Execute(&prompt, updatePromptData{
		Path:          target,
		Current:       current,
		Impacted:      impacted,
		AlwaysInclude: strings.TrimSpace(alwaysInclude),
	})

	content, summary := current, "No changes from the model; enforced required block."
	if err != nil {
		log.Warnf("Rendering prompt failed, enforcing required block only: %v", err)
	} else {
		update, genErr := llm.Generate[Update](ctx, completer, llm.Request{
			System:     updateSystemPrompt,
			Prompt:     prompt.String(),
			SchemaName: "agents_update",
		})
		switch {
		case genErr != nil:
			log.Warnf("Model update failed, enforcing required block only: %v", genErr)
		case strings.TrimSpace(update.UpdatedContent) == "":
			log.Warn("Model returned empty content, enforcing required block only")
		default:
			content, summary = update.UpdatedContent, update.Summary
		}
	}

	return agentsdoc.EnsureAlwaysInclude(content, alwaysInclude), summary
}
