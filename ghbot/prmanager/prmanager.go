/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prmanager maintains a bot-owned pull request keyed by its head
// branch. Each bot identity owns the branch and the PR on top of it; reruns
// converge on the same PR instead of stacking new ones. Machine-readable
// state is embedded in the PR body so a rerun can tell whether anything
// actually changed.
package prmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
)

// ErrSkipRequested is returned when the existing PR carries the identity's
// skip label. A human has taken the PR over; the bot must not touch it.
var ErrSkipRequested = errors.New("pull request has skip label")

// Spec describes the PR the manager should converge on.
type Spec struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Labels     []string
	Draft      bool
}

// Manager upserts the bot PR for one repository. T is the machine state
// embedded in the PR body for change detection across runs.
type Manager[T any] struct {
	client   *github.Client
	gql      *githubv4.Client
	owner    string
	repo     string
	identity string
}

// New creates a Manager for owner/repo acting as identity.
func New[T any](client *github.Client, owner, repo, identity string) (*Manager[T], error) {
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo cannot be empty")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity cannot be empty")
	}
	return &Manager[T]{
		client:   client,
		gql:      graphQLClient(client),
		owner:    owner,
		repo:     repo,
		identity: identity,
	}, nil
}

// graphQLClient builds a v4 client sharing the v3 client's transport, so
// installation auth and test servers carry over.
func graphQLClient(client *github.Client) *githubv4.Client {
	if client.BaseURL == nil || client.BaseURL.Host == "api.github.com" {
		return githubv4.NewClient(client.Client())
	}
	u := *client.BaseURL
	u.Path = path.Join(u.Path, "graphql")
	return githubv4.NewEnterpriseClient(u.String(), client.Client())
}

func (m *Manager[T]) skipLabel() string {
	return "skip:" + m.identity
}

type existingPR struct {
	number int
	url    string
	body   string
	labels []string
}

// findOpen looks up the open PR from spec's head branch into its base, if
// any. A single GraphQL query replaces listing every open PR in the repo.
func (m *Manager[T]) findOpen(ctx context.Context, spec Spec) (*existingPR, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number int
					Url    string
					Body   string
					Labels struct {
						Nodes []struct {
							Name string
						}
					} `graphql:"labels(first: 100)"`
				}
			} `graphql:"pullRequests(headRefName: $headRef, baseRefName: $baseRef, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":   githubv4.String(m.owner),
		"repo":    githubv4.String(m.repo),
		"headRef": githubv4.String(spec.HeadBranch),
		"baseRef": githubv4.String(spec.BaseBranch),
	}

	if err := m.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("querying pull request: %w", err)
	}

	nodes := query.Repository.PullRequests.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}

	pr := &existingPR{
		number: nodes[0].Number,
		url:    nodes[0].Url,
		body:   nodes[0].Body,
	}
	for _, label := range nodes[0].Labels.Nodes {
		pr.labels = append(pr.labels, label.Name)
	}
	return pr, nil
}

// Upsert converges the bot PR on spec. makeChanges is invoked with the head
// branch name only when a refresh is needed: no open PR yet, or the embedded
// state differs from data. Returns the PR URL.
func (m *Manager[T]) Upsert(
	ctx context.Context,
	spec Spec,
	data *T,
	makeChanges func(ctx context.Context, headBranch string) error,
) (string, error) {
	log := clog.FromContext(ctx)

	if spec.HeadBranch == "" || spec.BaseBranch == "" {
		return "", errors.New("head and base branches cannot be empty")
	}

	existing, err := m.findOpen(ctx, spec)
	if err != nil {
		return "", err
	}

	if existing != nil {
		for _, label := range existing.labels {
			if label == m.skipLabel() {
				return "", fmt.Errorf("%w: %s on #%d", ErrSkipRequested, label, existing.number)
			}
		}

		previous, err := m.extract(existing.body)
		if err != nil {
			log.Warnf("Failed to extract embedded state from PR #%d, refreshing: %v", existing.number, err)
		} else if diff := cmp.Diff(previous, data); diff == "" {
			log.With("pr", existing.number).Info("PR is up to date, no refresh needed")
			return existing.url, nil
		} else {
			log.With("pr", existing.number).Infof("PR state differs, refreshing: %s", diff)
		}
	}

	if err := makeChanges(ctx, spec.HeadBranch); err != nil {
		return "", fmt.Errorf("making changes: %w", err)
	}

	body := spec.Body
	body += fmt.Sprintf("\n\n> **Note:** To make manual changes to this PR, apply the `%s` label so reruns won't overwrite them.", m.skipLabel())
	body, err = m.embed(body, data)
	if err != nil {
		return "", err
	}

	if existing == nil {
		pr, _, err := m.client.PullRequests.Create(ctx, m.owner, m.repo, &github.NewPullRequest{
			Title: github.Ptr(spec.Title),
			Body:  github.Ptr(body),
			Head:  github.Ptr(spec.HeadBranch),
			Base:  github.Ptr(spec.BaseBranch),
			Draft: github.Ptr(spec.Draft),
		})
		if err != nil {
			return "", fmt.Errorf("creating pull request: %w", err)
		}

		if len(spec.Labels) > 0 {
			if _, _, err := m.client.Issues.AddLabelsToIssue(ctx, m.owner, m.repo, pr.GetNumber(), spec.Labels); err != nil {
				return "", fmt.Errorf("adding labels: %w", err)
			}
		}

		log.Infof("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
		return pr.GetHTMLURL(), nil
	}

	if _, _, err := m.client.PullRequests.Edit(ctx, m.owner, m.repo, existing.number, &github.PullRequest{
		Title: github.Ptr(spec.Title),
		Body:  github.Ptr(body),
	}); err != nil {
		return "", fmt.Errorf("updating pull request: %w", err)
	}

	if len(spec.Labels) > 0 {
		if _, _, err := m.client.Issues.ReplaceLabelsForIssue(ctx, m.owner, m.repo, existing.number, spec.Labels); err != nil {
			return "", fmt.Errorf("replacing labels: %w", err)
		}
	}

	log.Infof("Updated PR #%d: %s", existing.number, existing.url)
	return existing.url, nil
}

// The embedded state lives between HTML comment markers so it renders
// invisibly on GitHub.
func (m *Manager[T]) beginMarker() string { return fmt.Sprintf("<!-- %s-state:", m.identity) }

const endMarker = "-->"

// embed appends data as a hidden JSON block to body.
func (m *Manager[T]) embed(body string, data *T) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding embedded state: %w", err)
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", body, m.beginMarker(), encoded, endMarker), nil
}

// extract recovers the embedded state from a PR body written by embed.
func (m *Manager[T]) extract(body string) (*T, error) {
	begin := strings.Index(body, m.beginMarker())
	if begin < 0 {
		return nil, errors.New("no embedded state found")
	}
	rest := body[begin+len(m.beginMarker()):]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return nil, errors.New("embedded state is not terminated")
	}

	data := new(T)
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), data); err != nil {
		return nil, fmt.Errorf("decoding embedded state: %w", err)
	}
	return data, nil
}

// CommentOnce posts body as an issue comment on number unless an identical
// comment from a previous run is already present. The marker makes reruns
// idempotent without tracking comment IDs.
func (m *Manager[T]) CommentOnce(ctx context.Context, number int, marker, body string) error {
	tag := fmt.Sprintf("<!-- %s-comment: %s -->", m.identity, marker)

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := m.client.Issues.ListComments(ctx, m.owner, m.repo, number, opts)
		if err != nil {
			return fmt.Errorf("listing comments: %w", err)
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), tag) {
				clog.FromContext(ctx).With("marker", marker).Info("Comment already posted, skipping")
				return nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if _, _, err := m.client.Issues.CreateComment(ctx, m.owner, m.repo, number, &github.IssueComment{
		Body: github.Ptr(body + "\n\n" + tag),
	}); err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	return nil
}
