/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package completers constructs a provider backend from configuration. This
// is where the LLM_PROVIDER switch lives so both bots wire providers the same
// way.
package completers

import (
	"fmt"
	"strings"

	"chainguard.dev/docbots/llm"
	"chainguard.dev/docbots/llm/claudecompleter"
	"chainguard.dev/docbots/llm/openaicompleter"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config selects and configures the provider.
type Config struct {
	// Provider is openai or claude.
	Provider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicAPIKey string
	AnthropicModel  string
}

// New builds the configured completer.
func New(cfg Config) (llm.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return newOpenAI(cfg)
	case ProviderClaude:
		return newClaude(cfg)
	}
	return nil, fmt.Errorf("unknown LLM provider %q (want openai or claude)", cfg.Provider)
}

func newOpenAI(cfg Config) (llm.Completer, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the %s provider", ProviderOpenAI)
	}

	clientOpts := []openaioption.RequestOption{openaioption.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, openaioption.WithBaseURL(cfg.OpenAIBaseURL))
	}

	var opts []openaicompleter.Option
	if cfg.OpenAIModel != "" {
		opts = append(opts, openaicompleter.WithModel(cfg.OpenAIModel))
	}
	return openaicompleter.New(openai.NewClient(clientOpts...), opts...)
}

func newClaude(cfg Config) (llm.Completer, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the %s provider", ProviderClaude)
	}

	var opts []claudecompleter.Option
	if cfg.AnthropicModel != "" {
		opts = append(opts, claudecompleter.WithModel(cfg.AnthropicModel))
	}
	return claudecompleter.New(anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey)), opts...)
}
