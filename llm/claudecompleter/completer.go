/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudecompleter implements the llm.Completer contract on top of the
// Anthropic messages API. Claude has no schema-constrained response mode, so
// when a request carries a schema it is appended to the prompt as an output
// contract and the caller's tolerant JSON extraction does the rest.
package claudecompleter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/docbots/llm"
	"chainguard.dev/docbots/llm/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// DefaultModel is used when no model override is supplied.
const DefaultModel = "claude-sonnet-4-20250514"

// Completer calls the Anthropic messages API.
type Completer struct {
	client      anthropic.Client
	modelName   string
	maxTokens   int64
	temperature float64
	retryConfig retry.Config
}

var _ llm.Completer = (*Completer)(nil)

// New creates a Completer around an Anthropic client.
func New(client anthropic.Client, opts ...Option) (*Completer, error) {
	c := &Completer{
		client:      client,
		modelName:   DefaultModel,
		maxTokens:   4096,
		temperature: 0.1,
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return c, nil
}

// Model reports the configured model identifier.
func (c *Completer) Model() string {
	return c.modelName
}

// Complete runs a single message exchange with retry for transient API errors.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	log := clog.FromContext(ctx)

	prompt := req.Prompt
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return "", fmt.Errorf("marshaling schema: %w", err)
		}
		prompt = fmt.Sprintf(
			"%s\n\nRespond with a single JSON object matching this JSON schema, and nothing else:\n%s",
			prompt, schemaJSON)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	log.With("model", c.modelName).
		With("prompt_length", len(prompt)).
		Info("Requesting Claude completion")

	message, err := retry.Do(ctx, c.retryConfig, "claude_completion", isRetryableError, func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	for _, content := range message.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", errors.New("no text content in Claude's response")
}

// isRetryableError reports whether an Anthropic API error is transient.
// Covers rate limit, overloaded, and gateway errors.
func isRetryableError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
