/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaicompleter implements the llm.Completer contract on top of the
// OpenAI chat completions API, using native JSON-schema structured outputs
// when the request carries a schema.
package openaicompleter

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/docbots/llm"
	"chainguard.dev/docbots/llm/retry"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is used when no model override is supplied.
const DefaultModel = "gpt-4o-mini"

// Completer calls the OpenAI chat completions API.
type Completer struct {
	client      openai.Client
	modelName   string
	maxTokens   int64
	temperature float64
	retryConfig retry.Config
}

var _ llm.Completer = (*Completer)(nil)

// New creates a Completer around an OpenAI client.
func New(client openai.Client, opts ...Option) (*Completer, error) {
	c := &Completer{
		client:      client,
		modelName:   DefaultModel,
		maxTokens:   4096,
		temperature: 0.1, // low temperature for consistent doc edits
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

// Complete runs a single chat completion with retry for transient API errors.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	log := clog.FromContext(ctx)

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.modelName),
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(c.temperature),
	}

	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	params.Messages = append(params.Messages, openai.UserMessage(req.Prompt))

	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			return "", errors.New("schema name is required when a schema is set")
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	log.With("model", c.modelName).
		With("prompt_length", len(req.Prompt)).
		Info("Requesting OpenAI completion")

	completion, err := retry.Do(ctx, c.retryConfig, "openai_completion", isRetryableError, func() (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("creating completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}

	return completion.Choices[0].Message.Content, nil
}
