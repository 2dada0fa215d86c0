/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudecompleter

import (
	"fmt"
	"strings"

	"chainguard.dev/docbots/llm/retry"
)

// Option is a functional option for configuring the completer.
type Option func(*Completer) error

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(c *Completer) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
		}
		c.modelName = model
		return nil
	}
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(tokens int64) Option {
	return func(c *Completer) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		c.maxTokens = tokens
		return nil
	}
}

// WithTemperature sets the sampling temperature (0.0 to 1.0 for Claude).
func WithTemperature(temp float64) Option {
	return func(c *Completer) error {
		if temp < 0.0 || temp > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temp)
		}
		c.temperature = temp
		return nil
	}
}

// WithRetryConfig sets the retry schedule for transient API errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Completer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.retryConfig = cfg
		return nil
	}
}
