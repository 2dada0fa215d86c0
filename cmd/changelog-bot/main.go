/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the changelog bot: a one-shot job run after a pull
// request merges that records the PR in CHANGELOG.md and optionally cuts a
// release.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainguard.dev/docbots/changelog"
	"chainguard.dev/docbots/changelogbot"
	"chainguard.dev/docbots/ghbot/auth"
	"chainguard.dev/docbots/ghbot/workspace"
	"chainguard.dev/docbots/llm/completers"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

type config struct {
	Repo      string `env:"REPO,required"` // org/name
	PRNumber  int    `env:"PR_NUMBER,required"`
	Workspace string `env:"GITHUB_WORKSPACE,default=."`
	Identity  string `env:"BOT_IDENTITY,default=changelog-bot"`

	// GitHub credential: a token, or App credentials when the token is
	// empty.
	GitHubToken       string `env:"GITHUB_TOKEN"`
	AppID             int64  `env:"GITHUB_APP_ID"`
	AppInstallationID int64  `env:"GITHUB_APP_INSTALLATION_ID"`
	AppPrivateKey     string `env:"GITHUB_APP_PRIVATE_KEY"`

	LLMProvider     string `env:"LLM_PROVIDER,default=openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL"`

	ChangelogPath  string `env:"CHANGELOG_PATH,default=CHANGELOG.md"`
	BumpFromLabels bool   `env:"BUMP_FROM_LABELS,default=false"`
	BumpLevel      string `env:"BUMP_LEVEL"`
	OpenPR         bool   `env:"CHANGELOG_OPEN_PR,default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		clog.FatalContextf(ctx, "REPO must be org/name, got %q", cfg.Repo)
	}

	client, tokenSource, err := auth.NewClient(ctx, auth.Config{
		Token:          cfg.GitHubToken,
		AppID:          cfg.AppID,
		InstallationID: cfg.AppInstallationID,
		PrivateKey:     []byte(cfg.AppPrivateKey),
	})
	if err != nil {
		clog.FatalContextf(ctx, "building GitHub client: %v", err)
	}

	ws, err := openWorkspace(ctx, cfg, client, tokenSource, owner, repo)
	if err != nil {
		clog.FatalContextf(ctx, "opening workspace: %v", err)
	}

	completer, err := completers.New(completers.Config{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
	})
	if err != nil {
		clog.FatalContextf(ctx, "building completer: %v", err)
	}

	opts, err := botOptions(cfg)
	if err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}

	bot, err := changelogbot.New(client, ws, completer, owner, repo, cfg.Identity, opts...)
	if err != nil {
		clog.FatalContextf(ctx, "creating bot: %v", err)
	}

	clog.InfoContextf(ctx, "Recording %s#%d (model %s)", cfg.Repo, cfg.PRNumber, completer.Model())
	outcome, err := bot.Run(ctx, cfg.PRNumber)
	if err != nil {
		clog.FatalContextf(ctx, "run failed: %v", err)
	}

	switch {
	case outcome.Skipped:
		clog.InfoContextf(ctx, "Nothing recorded: %s", outcome.Reason)
	case outcome.Version != "":
		clog.InfoContextf(ctx, "Recorded #%d and cut release %s", cfg.PRNumber, outcome.Version)
	default:
		clog.InfoContextf(ctx, "Recorded #%d under %s", cfg.PRNumber, outcome.Entry.Category)
	}
	if outcome.PRURL != "" {
		clog.InfoContextf(ctx, "Delivered via %s", outcome.PRURL)
	}
}

// openWorkspace attaches to the Actions checkout, cloning the repository's
// default branch fresh when the workspace path holds no repository.
func openWorkspace(ctx context.Context, cfg config, client *github.Client, ts oauth2.TokenSource, owner, repo string) (*workspace.Workspace, error) {
	ws, err := workspace.Open(ctx, cfg.Workspace, ts, cfg.Identity)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, workspace.ErrNoRepository) {
		return nil, err
	}

	r, _, err := client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("resolving clone source: %w", err)
	}
	return workspace.Clone(ctx, r.GetCloneURL(), r.GetDefaultBranch(), ts, cfg.Identity)
}

func botOptions(cfg config) ([]changelogbot.Option, error) {
	opts := []changelogbot.Option{changelogbot.WithChangelogPath(cfg.ChangelogPath)}

	switch {
	case cfg.BumpFromLabels:
		opts = append(opts, changelogbot.WithBumpFromLabels())
	case cfg.BumpLevel != "":
		level, err := changelog.ParseBumpLevel(cfg.BumpLevel)
		if err != nil {
			return nil, fmt.Errorf("parsing BUMP_LEVEL: %w", err)
		}
		opts = append(opts, changelogbot.WithBumpLevel(level))
	}

	if cfg.OpenPR {
		opts = append(opts, changelogbot.WithPullRequestDelivery())
	}
	return opts, nil
}
