/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package result parses structured JSON out of model responses. Models are
// asked for bare JSON but routinely wrap it in markdown fences or prose, so
// extraction is tolerant of the common wrappings.
package result

import (
	"encoding/json"
	"strings"
)

// ExtractJSON returns the JSON payload from a model response. It prefers the
// first ```json fenced block; absent one, it strips any surrounding fence
// markers and whitespace and returns the remainder.
func ExtractJSON(text string) string {
	if block, ok := fencedBlock(text); ok {
		return block
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// fencedBlock scans for a ```json fence on its own line and returns its
// content up to the closing fence.
func fencedBlock(text string) (string, bool) {
	var sb strings.Builder
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		switch {
		case !inBlock && line == "```json":
			inBlock = true
		case inBlock && line == "```":
			return strings.TrimSpace(sb.String()), true
		case inBlock:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(line)
		}
	}
	if inBlock {
		// Unterminated fence; take what we collected.
		return strings.TrimSpace(sb.String()), true
	}
	return "", false
}

// Extract pulls the JSON payload from text and unmarshals it into T.
func Extract[T any](text string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &out); err != nil {
		return out, err
	}
	return out, nil
}
