/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudecompleter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chainguard.dev/docbots/llm"
	"chainguard.dev/docbots/llm/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

func newTestCompleter(t *testing.T, handler http.HandlerFunc, opts ...Option) *Completer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	cfg := retry.Config{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	c, err := New(client, append([]Option{WithRetryConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	return c
}

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content": []map[string]any{{
			"type": "text",
			"text": text,
		}},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(messageResponse("hello")))
	})

	got, err := c.Complete(context.Background(), llm.Request{
		System: "You update docs.",
		Prompt: "Update AGENTS.md",
	})
	require.NoError(t, err)
	require.Equal(t, "hello", got)
	require.NotNil(t, gotBody["system"])
}

func TestComplete_SchemaEmbeddedInPrompt(t *testing.T) {
	t.Parallel()
	var gotBody struct {
		Messages []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(messageResponse("```json\n{\"summary\":\"done\",\"updated_content\":\"x\"}\n```")))
	})

	type update struct {
		UpdatedContent string `json:"updated_content" jsonschema:"required"`
		Summary        string `json:"summary" jsonschema:"required"`
	}
	got, err := llm.Generate[update](context.Background(), c, llm.Request{
		Prompt:     "rewrite the doc",
		SchemaName: "AgentsUpdate",
	})
	require.NoError(t, err)
	require.Equal(t, "done", got.Summary)

	require.Len(t, gotBody.Messages, 1)
	require.Len(t, gotBody.Messages[0].Content, 1)
	require.True(t, strings.Contains(gotBody.Messages[0].Content[0].Text, "JSON schema"),
		"prompt should carry the schema contract")
}

func TestComplete_RetriesOverloaded(t *testing.T) {
	t.Parallel()
	var calls int
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(messageResponse("recovered")))
	})

	got, err := c.Complete(context.Background(), llm.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "recovered", got)
	require.Equal(t, 2, calls)
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()
	require.True(t, isRetryableError(&anthropic.Error{StatusCode: 429}))
	require.True(t, isRetryableError(&anthropic.Error{StatusCode: 529}))
	require.False(t, isRetryableError(&anthropic.Error{StatusCode: 400}))
	require.False(t, isRetryableError(nil))
}

func TestOptions(t *testing.T) {
	t.Parallel()
	client := anthropic.NewClient(option.WithAPIKey("k"))

	if _, err := New(client, WithModel("gpt-4o")); err == nil {
		t.Fatal("expected error for non-Claude model")
	}
	if _, err := New(client, WithMaxTokens(-1)); err == nil {
		t.Fatal("expected error for negative max tokens")
	}
	if _, err := New(client, WithTemperature(1.5)); err == nil {
		t.Fatal("expected error for out-of-range temperature")
	}

	c, err := New(client, WithModel("claude-haiku-4-5"))
	require.NoError(t, err)
	require.Equal(t, "claude-haiku-4-5", c.Model())
}
