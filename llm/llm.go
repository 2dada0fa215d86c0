/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package llm defines the provider-neutral completion contract shared by the
// bots. Concrete backends live in llm/openaicompleter and llm/claudecompleter;
// callers that want typed responses use Generate, which pairs a response type
// with its reflected JSON schema and tolerant extraction.
package llm

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/docbots/llm/result"
	"chainguard.dev/docbots/llm/schema"
	"github.com/invopop/jsonschema"
)

// Request is a single completion request.
type Request struct {
	// System carries optional system instructions.
	System string
	// Prompt is the user prompt.
	Prompt string
	// SchemaName names the expected response shape for providers with
	// native structured outputs.
	SchemaName string
	// Schema constrains the response to a JSON shape. Nil means freeform.
	Schema *jsonschema.Schema
}

// Completer produces a completion for a request. Implementations handle
// provider-specific transport, retry, and structured-output plumbing and
// return the raw response text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model reports the model identifier in use, for logging.
	Model() string
}

// Generate runs a completion constrained to T's JSON schema and unmarshals
// the response. The schema name must be set on the request by the caller.
func Generate[T any](ctx context.Context, c Completer, req Request) (T, error) {
	var zero T
	if req.SchemaName == "" {
		return zero, errors.New("schema name cannot be empty")
	}
	req.Schema = schema.ReflectType[T]()

	text, err := c.Complete(ctx, req)
	if err != nil {
		return zero, err
	}

	out, err := result.Extract[T](text)
	if err != nil {
		return zero, fmt.Errorf("parsing %s response: %w", req.SchemaName, err)
	}
	return out, nil
}
