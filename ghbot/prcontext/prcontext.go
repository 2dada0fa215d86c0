/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prcontext fetches the pull request state the bots reason about:
// metadata, labels, and the changed-file listing, plus the derived values
// (file summaries, scope guess) that feed prompts.
package prcontext

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/waigani/diffparser"
)

// listFilesCap is the REST API's hard limit on per-PR file listings. PRs
// beyond it fall back to diff parsing.
const listFilesCap = 3000

// PullRequest is the subset of PR metadata the bots consume.
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	Author  string
	Labels  []string
	State   string
	Merged  bool
	BaseRef string
	HeadRef string
	HeadSHA string
}

// ChangedFile describes one file touched by the PR.
type ChangedFile struct {
	Path      string
	Status    string // added, removed, modified, renamed, ...
	Additions int
	Deletions int
	// PreviousPath is set for renames.
	PreviousPath string
}

// Context bundles a PR with its changed files.
type Context struct {
	PR    PullRequest
	Files []ChangedFile
}

// HasLabel reports whether the PR carries the named label.
func (c *Context) HasLabel(name string) bool {
	for _, l := range c.PR.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// ChangedPaths returns the paths of all changed files, in listing order.
func (c *Context) ChangedPaths() []string {
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Fetcher retrieves pull request context from GitHub.
type Fetcher struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewFetcher creates a Fetcher for one repository.
func NewFetcher(gh *github.Client, owner, repo string) *Fetcher {
	return &Fetcher{gh: gh, owner: owner, repo: repo}
}

// Fetch retrieves the PR and its changed files. Listings the REST API
// truncates are recovered by parsing the PR's unified diff instead.
func (f *Fetcher) Fetch(ctx context.Context, number int) (*Context, error) {
	log := clog.FromContext(ctx)

	pr, _, err := f.gh.PullRequests.Get(ctx, f.owner, f.repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR #%d: %w", number, err)
	}

	out := &Context{PR: PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		Author:  pr.GetUser().GetLogin(),
		State:   pr.GetState(),
		Merged:  pr.GetMerged(),
		BaseRef: pr.GetBase().GetRef(),
		HeadRef: pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
	}}
	for _, label := range pr.Labels {
		out.PR.Labels = append(out.PR.Labels, label.GetName())
	}

	if pr.GetChangedFiles() > listFilesCap {
		log.With("changed_files", pr.GetChangedFiles()).
			Info("File listing exceeds the REST cap, parsing unified diff instead")
		files, err := f.fetchFilesFromDiff(ctx, number)
		if err != nil {
			return nil, err
		}
		out.Files = files
		return out, nil
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := f.gh.PullRequests.ListFiles(ctx, f.owner, f.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing PR files: %w", err)
		}
		for _, cf := range page {
			out.Files = append(out.Files, ChangedFile{
				Path:         cf.GetFilename(),
				Status:       cf.GetStatus(),
				Additions:    cf.GetAdditions(),
				Deletions:    cf.GetDeletions(),
				PreviousPath: cf.GetPreviousFilename(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// fetchFilesFromDiff reconstructs the changed-file listing from the PR's raw
// unified diff.
func (f *Fetcher) fetchFilesFromDiff(ctx context.Context, number int) ([]ChangedFile, error) {
	raw, _, err := f.gh.PullRequests.GetRaw(ctx, f.owner, f.repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return nil, fmt.Errorf("fetching PR diff: %w", err)
	}
	return filesFromDiff(raw)
}

// filesFromDiff parses a unified diff into changed-file records.
func filesFromDiff(raw string) ([]ChangedFile, error) {
	diff, err := diffparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	files := make([]ChangedFile, 0, len(diff.Files))
	for _, df := range diff.Files {
		cf := ChangedFile{Path: df.NewName}
		switch df.Mode {
		case diffparser.NEW:
			cf.Status = "added"
		case diffparser.DELETED:
			cf.Status = "removed"
			cf.Path = df.OrigName
		default:
			cf.Status = "modified"
			if df.OrigName != "" && df.NewName != "" && df.OrigName != df.NewName {
				cf.Status = "renamed"
				cf.PreviousPath = df.OrigName
			}
		}
		for _, hunk := range df.Hunks {
			for _, line := range hunk.WholeRange.Lines {
				switch line.Mode {
				case diffparser.ADDED:
					cf.Additions++
				case diffparser.REMOVED:
					cf.Deletions++
				}
			}
		}
		files = append(files, cf)
	}
	return files, nil
}

// SummarizeFiles renders up to cap changed files as "status path (+a/-d)"
// lines, appending an elision marker when truncated.
func SummarizeFiles(files []ChangedFile, cap int) string {
	var sb strings.Builder
	n := len(files)
	if n > cap {
		n = cap
	}
	for i := 0; i < n; i++ {
		f := files[i]
		fmt.Fprintf(&sb, "%s %s (+%d/-%d)\n", f.Status, f.Path, f.Additions, f.Deletions)
	}
	if len(files) > cap {
		fmt.Fprintf(&sb, "... and %d more\n", len(files)-cap)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// ScopeGuess returns the most common top-level directory among the changed
// paths, or "" when no changed file lives in a directory. Ties break
// lexicographically for stable output.
func ScopeGuess(files []ChangedFile) string {
	counts := map[string]int{}
	for _, f := range files {
		if dir, _, ok := strings.Cut(f.Path, "/"); ok {
			counts[dir]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	dirs := make([]string, 0, len(counts))
	for dir := range counts {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	best := dirs[0]
	for _, dir := range dirs[1:] {
		if counts[dir] > counts[best] {
			best = dir
		}
	}
	return best
}
