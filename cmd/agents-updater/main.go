/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the agents updater: a one-shot job run on an open
// pull request that refreshes the AGENTS.md files governing the PR's changed
// paths, either suggesting updates as comments or applying them as a commit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainguard.dev/docbots/ghbot/auth"
	"chainguard.dev/docbots/ghbot/workspace"
	"chainguard.dev/docbots/llm/completers"
	"chainguard.dev/docbots/updater"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

type config struct {
	Repo      string `env:"REPO,required"` // org/name
	PRNumber  int    `env:"PR_NUMBER,required"`
	Workspace string `env:"GITHUB_WORKSPACE,default=."`
	Identity  string `env:"BOT_IDENTITY,default=agents-updater"`

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

	Mode              string `env:"AGENTS_MODE,default=suggest"`
	AlwaysInclude     string `env:"AGENTS_ALWAYS_INCLUDE"`
	AlwaysIncludeFile string `env:"AGENTS_ALWAYS_INCLUDE_FILE"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	mode, err := updater.ParseMode(cfg.Mode)
	if err != nil {
		clog.FatalContextf(ctx, "parsing AGENTS_MODE: %v", err)
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

	u, err := updater.New(client, ws, completer, owner, repo,
		updater.WithMode(mode),
		updater.WithAlwaysInclude(alwaysInclude(ctx, cfg)))
	if err != nil {
		clog.FatalContextf(ctx, "creating updater: %v", err)
	}

	clog.InfoContextf(ctx, "Updating AGENTS.md for %s#%d (%s mode, model %s)", cfg.Repo, cfg.PRNumber, mode, completer.Model())
	if _, err := u.Run(ctx, cfg.PRNumber); err != nil {
		// Suggest mode is advisory; a failed run must not fail the
		// hosting job.
		if mode == updater.ModeSuggest {
			clog.ErrorContextf(ctx, "run failed (suggest mode, not failing the job): %v", err)
			return
		}
		clog.FatalContextf(ctx, "run failed: %v", err)
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

// alwaysInclude resolves the required block, preferring the file form when it
// names a readable file.
func alwaysInclude(ctx context.Context, cfg config) string {
	if cfg.AlwaysIncludeFile == "" {
		return cfg.AlwaysInclude
	}
	raw, err := os.ReadFile(cfg.AlwaysIncludeFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			clog.WarnContextf(ctx, "reading AGENTS_ALWAYS_INCLUDE_FILE: %v", err)
		}
		return cfg.AlwaysInclude
	}
	return string(raw)
}
