/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaicompleter

import (
	"errors"

	"github.com/openai/openai-go"
)

// isRetryableError reports whether an OpenAI API error is transient.
// Covers rate limits and server-side failures.
func isRetryableError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
