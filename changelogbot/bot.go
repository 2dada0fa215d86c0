/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changelogbot records merged pull requests in CHANGELOG.md. Each run
// generates one Keep a Changelog bullet for the PR (model-written with a
// deterministic fallback), inserts it under the Unreleased section, optionally
// cuts a release with a semver bump, and delivers the result as a direct
// commit to the base branch or through a bot-owned pull request.
package changelogbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chainguard.dev/docbots/changelog"
	"chainguard.dev/docbots/ghbot/prcontext"
	"chainguard.dev/docbots/ghbot/prmanager"
	"chainguard.dev/docbots/ghbot/workspace"
	"chainguard.dev/docbots/llm"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// DefaultChangelogPath is where the changelog lives unless configured
// otherwise.
const DefaultChangelogPath = "CHANGELOG.md"

// Option configures a Bot.
type Option func(*Bot) error

// WithChangelogPath overrides the repo-relative changelog location.
func WithChangelogPath(path string) Option {
	return func(b *Bot) error {
		if path == "" {
			return errors.New("changelog path cannot be empty")
		}
		b.changelogPath = path
		return nil
	}
}

// WithBumpFromLabels cuts a release when the merged PR carries a semver
// label (semver:major|minor|patch, or breaking-change for major).
func WithBumpFromLabels() Option {
	return func(b *Bot) error {
		b.bumpFromLabels = true
		return nil
	}
}

// WithBumpLevel cuts a release at the given level on every run. Ignored when
// label-driven bumping is enabled.
func WithBumpLevel(level changelog.BumpLevel) Option {
	return func(b *Bot) error {
		b.bumpLevel = level
		return nil
	}
}

// WithPullRequestDelivery delivers the changelog change through a bot-owned
// PR instead of committing directly to the base branch.
func WithPullRequestDelivery() Option {
	return func(b *Bot) error {
		b.openPR = true
		return nil
	}
}

// WithClock overrides the release-date source.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) error {
		b.now = now
		return nil
	}
}

// Bot runs the changelog workflow for one repository.
type Bot struct {
	fetcher   *prcontext.Fetcher
	prs       *prmanager.Manager[prState]
	ws        *workspace.Workspace
	completer llm.Completer
	identity  string

	changelogPath  string
	bumpFromLabels bool
	bumpLevel      changelog.BumpLevel
	openPR         bool
	now            func() time.Time
}

// prState is the machine state embedded in bot PR bodies for no-op detection
// across runs.
type prState struct {
	Entry   changelog.Entry `json:"entry"`
	Version string          `json:"version,omitempty"`
}

// New creates a Bot for owner/repo operating on the checkout ws as identity.
func New(client *github.Client, ws *workspace.Workspace, completer llm.Completer, owner, repo, identity string, opts ...Option) (*Bot, error) {
	if client == nil || ws == nil || completer == nil {
		return nil, errors.New("client, workspace, and completer are required")
	}

	prs, err := prmanager.New[prState](client, owner, repo, identity)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		fetcher:       prcontext.NewFetcher(client, owner, repo),
		prs:           prs,
		ws:            ws,
		completer:     completer,
		identity:      identity,
		changelogPath: DefaultChangelogPath,
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Outcome reports what a run did.
type Outcome struct {
	// Skipped is set with a Reason when the run recorded nothing.
	Skipped bool
	Reason  string
	// Entry is the recorded entry when not skipped.
	Entry changelog.Entry
	// Version is set when the run cut a release.
	Version string
	// PRURL is set when delivery went through a bot PR.
	PRURL string
}

// Run records PR number in the changelog. Reruns are no-ops once the PR
// number appears in the document.
func (b *Bot) Run(ctx context.Context, number int) (*Outcome, error) {
	log := clog.FromContext(ctx).With("pr", number)

	prCtx, err := b.fetcher.Fetch(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR context: %w", err)
	}

	if !prCtx.PR.Merged {
		log.Info("PR is not merged, nothing to record")
		return &Outcome{Skipped: true, Reason: "not merged"}, nil
	}
	if len(prCtx.Files) == 0 {
		log.Info("PR has no changed files, nothing to record")
		return &Outcome{Skipped: true, Reason: "no changed files"}, nil
	}

	text, err := b.readChangelog()
	if err != nil {
		return nil, err
	}
	if changelog.HasReference(text, number) {
		log.Info("PR already recorded, nothing to do")
		return &Outcome{Skipped: true, Reason: "already recorded"}, nil
	}

	entry := generateEntry(ctx, b.completer, prCtx)
	updated, err := changelog.Insert(text, entry)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}

	outcome := &Outcome{Entry: entry}
	if level, ok := b.releaseLevel(prCtx); ok {
		released, version, err := changelog.Release(updated, level, b.now())
		if err != nil {
			return nil, fmt.Errorf("cutting release: %w", err)
		}
		updated = released
		outcome.Version = version.String()
		log.With("version", outcome.Version).Info("Cutting release")
	}

	if b.openPR {
		prURL, err := b.deliverPR(ctx, prCtx, entry, outcome.Version, updated)
		if err != nil {
			return nil, err
		}
		outcome.PRURL = prURL
		return outcome, nil
	}

	if err := b.deliverDirect(ctx, prCtx, updated, number); err != nil {
		return nil, err
	}
	return outcome, nil
}

// readChangelog loads the changelog, bootstrapping a skeleton when the file
// does not exist yet.
func (b *Bot) readChangelog() (string, error) {
	raw, err := os.ReadFile(filepath.Join(b.ws.Root(), b.changelogPath))
	if errors.Is(err, os.ErrNotExist) {
		return changelog.Bootstrap(), nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", b.changelogPath, err)
	}
	return string(raw), nil
}

// releaseLevel decides whether this run cuts a release and at what level.
func (b *Bot) releaseLevel(prCtx *prcontext.Context) (changelog.BumpLevel, bool) {
	if b.bumpFromLabels {
		return changelog.LevelFromLabels(prCtx.PR.Labels)
	}
	if b.bumpLevel != "" {
		return b.bumpLevel, true
	}
	return "", false
}

func (b *Bot) writeChangelog(text string) error {
	full := filepath.Join(b.ws.Root(), b.changelogPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", b.changelogPath, err)
	}
	if err := os.WriteFile(full, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", b.changelogPath, err)
	}
	return nil
}

// deliverDirect commits the updated changelog to the PR's base branch.
func (b *Bot) deliverDirect(ctx context.Context, prCtx *prcontext.Context, text string, number int) error {
	if err := b.writeChangelog(text); err != nil {
		return err
	}
	if err := b.ws.ValidateScope(func(path string) bool { return path == b.changelogPath }); err != nil {
		return err
	}
	if err := b.ws.CheckoutBranch(prCtx.PR.BaseRef, true); err != nil {
		return err
	}
	if _, err := b.ws.CommitAll(ctx, fmt.Sprintf("Record #%d in %s", number, b.changelogPath)); err != nil {
		return err
	}
	return b.ws.Push(ctx, prCtx.PR.BaseRef, false)
}

// deliverPR pushes the change on a bot branch and upserts the bot PR. The
// embedded state lets a rerun with identical output converge without a new
// commit.
func (b *Bot) deliverPR(ctx context.Context, prCtx *prcontext.Context, entry changelog.Entry, version, text string) (string, error) {
	state := &prState{Entry: entry, Version: version}

	title := fmt.Sprintf("Record #%d in %s", prCtx.PR.Number, b.changelogPath)
	body := fmt.Sprintf("Records the changelog entry for #%d.", prCtx.PR.Number)
	if version != "" {
		title = fmt.Sprintf("Release %s", version)
		body = fmt.Sprintf("Records the changelog entry for #%d and cuts release %s.", prCtx.PR.Number, version)
	}

	return b.prs.Upsert(ctx, prmanager.Spec{
		Title:      title,
		Body:       body,
		HeadBranch: b.identity + "/changelog",
		BaseBranch: prCtx.PR.BaseRef,
		Labels:     []string{"changelog"},
	}, state, func(ctx context.Context, headBranch string) error {
		if err := b.ws.CheckoutBranch(headBranch, true); err != nil {
			return err
		}
		if err := b.writeChangelog(text); err != nil {
			return err
		}
		if err := b.ws.ValidateScope(func(path string) bool { return path == b.changelogPath }); err != nil {
			return err
		}
		if _, err := b.ws.CommitAll(ctx, title); err != nil {
			return err
		}
		// Bot branches are rebuilt on every refresh.
		return b.ws.Push(ctx, headBranch, true)
	})
}
