/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package updater keeps per-directory AGENTS.md contributor-guidance files
// current. It runs against an open pull request: the PR's changed files are
// mapped to the AGENTS.md documents that govern them, each target is rewritten
// through the model, and the result is either suggested as PR comments or
// applied as a commit pushed to the PR head branch.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/docbots/agentsdoc"
	"chainguard.dev/docbots/ghbot/prcontext"
	"chainguard.dev/docbots/ghbot/prmanager"
	"chainguard.dev/docbots/ghbot/workspace"
	"chainguard.dev/docbots/llm"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// DefaultIdentity is the bot identity used for commits and comment markers
// unless configured otherwise.
const DefaultIdentity = "agents-updater"

// Mode selects how the updater delivers its results.
type Mode string

const (
	// ModeSuggest posts a comment per changed target and never touches
	// the worktree.
	ModeSuggest Mode = "suggest"
	// ModeApply writes, commits, and pushes the updated documents.
	ModeApply Mode = "apply"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSuggest:
		return ModeSuggest, nil
	case ModeApply:
		return ModeApply, nil
	}
	return "", fmt.Errorf("invalid mode %q (want suggest or apply)", s)
}

// Option configures an Updater.
type Option func(*Updater) error

// WithMode sets the delivery mode. The default is suggest.
func WithMode(mode Mode) Option {
	return func(u *Updater) error {
		if mode != ModeSuggest && mode != ModeApply {
			return fmt.Errorf("invalid mode %q", mode)
		}
		u.mode = mode
		return nil
	}
}

// WithAlwaysInclude sets the block that must appear exactly once in every
// touched AGENTS.md.
func WithAlwaysInclude(block string) Option {
	return func(u *Updater) error {
		u.alwaysInclude = block
		return nil
	}
}

// WithSummaryWriter redirects the end-of-run summary table. The default is
// stdout.
func WithSummaryWriter(w io.Writer) Option {
	return func(u *Updater) error {
		u.summaryWriter = w
		return nil
	}
}

// WithIdentity overrides the bot identity used in comment markers.
func WithIdentity(identity string) Option {
	return func(u *Updater) error {
		if identity == "" {
			return errors.New("identity cannot be empty")
		}
		u.identity = identity
		return nil
	}
}

// Updater orchestrates one run against one pull request.
type Updater struct {
	prs       *prmanager.Manager[TargetResult]
	fetcher   *prcontext.Fetcher
	ws        *workspace.Workspace
	completer llm.Completer
	identity  string

	mode          Mode
	alwaysInclude string
	summaryWriter io.Writer
}

// New creates an Updater for owner/repo operating on the checkout ws.
func New(client *github.Client, ws *workspace.Workspace, completer llm.Completer, owner, repo string, opts ...Option) (*Updater, error) {
	if client == nil || ws == nil || completer == nil {
		return nil, errors.New("client, workspace, and completer are required")
	}
	u := &Updater{
		fetcher:       prcontext.NewFetcher(client, owner, repo),
		ws:            ws,
		completer:     completer,
		identity:      DefaultIdentity,
		mode:          ModeSuggest,
		summaryWriter: os.Stdout,
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}

	prs, err := prmanager.New[TargetResult](client, owner, repo, u.identity)
	if err != nil {
		return nil, err
	}
	u.prs = prs
	return u, nil
}

// Run executes the updater against PR number. The returned report is also
// persisted at the repo root and summarized to the summary writer.
func (u *Updater) Run(ctx context.Context, number int) (*Report, error) {
	log := clog.FromContext(ctx).With("pr", number, "mode", string(u.mode))

	prCtx, err := u.fetcher.Fetch(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR context: %w", err)
	}

	report := &Report{Mode: u.mode}
	if len(prCtx.Files) == 0 {
		log.Info("No changed files in PR, nothing to do")
		return report, report.Write(u.ws.Root())
	}

	// A pre-dirtied tree makes the scope check meaningless, so apply mode
	// refuses to start on one. Checked before any model call.
	if u.mode == ModeApply {
		if err := u.ws.RequireClean(); err != nil {
			return nil, err
		}
	}

	mapping := agentsdoc.MapChangedPaths(u.ws.Root(), prCtx.ChangedPaths())
	log.With("targets", len(mapping)).Infof("Updating AGENTS.md targets (model %s)", u.completer.Model())

	for _, target := range agentsdoc.Targets(mapping) {
		result, err := u.updateTarget(ctx, number, target, mapping[target])
		if err != nil {
			return nil, err
		}
		report.Targets = append(report.Targets, result)
	}

	if u.mode == ModeApply && report.anyChanged() {
		if err := u.commitAndPush(ctx, prCtx.PR.HeadRef, number); err != nil {
			return nil, err
		}
		report.Applied = true
	}

	if err := report.Write(u.ws.Root()); err != nil {
		return nil, err
	}
	if err := report.Summarize(u.summaryWriter); err != nil {
		log.Warnf("Rendering summary table failed: %v", err)
	}
	return report, nil
}

func (r *Report) anyChanged() bool {
	for _, target := range r.Targets {
		if target.Changed {
			return true
		}
	}
	return false
}

// updateTarget rewrites one AGENTS.md and delivers the result per the mode.
func (u *Updater) updateTarget(ctx context.Context, number int, target string, impacted []string) (TargetResult, error) {
	log := clog.FromContext(ctx).With("target", target)

	full := filepath.Join(u.ws.Root(), target)
	current := ""
	if raw, err := os.ReadFile(full); err == nil {
		current = string(raw)
	} else if !errors.Is(err, os.ErrNotExist) {
		return TargetResult{}, fmt.Errorf("reading %s: %w", target, err)
	}

	content, summary := generateUpdate(ctx, u.completer, target, current, impacted, u.alwaysInclude)

	if strings.TrimSpace(content) == strings.TrimSpace(current) {
		log.Info("No changes needed")
		return TargetResult{File: target, Changed: false, Summary: summary}, nil
	}

	switch u.mode {
	case ModeApply:
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return TargetResult{}, fmt.Errorf("creating directory for %s: %w", target, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return TargetResult{}, fmt.Errorf("writing %s: %w", target, err)
		}
		u.comment(ctx, number, target, fmt.Sprintf("Applied AGENTS.md update for `%s`. %s", target, summary))

	default:
		body := fmt.Sprintf("Proposed update to `%s`\n\nReasoning: %s\n\nNew file content preview:\n\n```markdown\n%s\n```",
			target, summary, content)
		u.comment(ctx, number, target, body)
	}

	return TargetResult{File: target, Changed: true, Summary: summary}, nil
}

// comment posts body on the PR, at most once per target across reruns.
// Comment failures never fail the run.
func (u *Updater) comment(ctx context.Context, number int, target, body string) {
	if err := u.prs.CommentOnce(ctx, number, target, body); err != nil {
		clog.FromContext(ctx).Warnf("Posting PR comment failed: %v", err)
	}
}

// commitAndPush validates that only AGENTS.md files changed, then commits
// with the bot identity and pushes to the PR head branch.
func (u *Updater) commitAndPush(ctx context.Context, headRef string, number int) error {
	if err := u.ws.ValidateScope(agentsdoc.IsAgentsFile); err != nil {
		return err
	}

	if err := u.ws.CheckoutBranch(headRef, true); err != nil {
		return err
	}
	if _, err := u.ws.CommitAll(ctx, fmt.Sprintf("Update AGENTS.md guidance for #%d", number)); err != nil {
		return err
	}
	return u.ws.Push(ctx, headRef, false)
}
