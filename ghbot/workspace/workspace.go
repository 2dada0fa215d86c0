/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace wraps the git working tree a bot run operates on. The
// usual host is a CI job that already checked the repository out, so Open
// attaches to an existing tree; Clone exists for runs outside CI. The
// workspace enforces change-scope policy before anything is committed.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

// ErrScopeViolation is returned when the working tree holds modifications
// outside the allowed set. Nothing is committed once this fires.
var ErrScopeViolation = errors.New("working tree modified outside allowed scope")

// ErrDirty is returned when a run requires a clean tree and finds leftovers.
var ErrDirty = errors.New("working tree has uncommitted changes")

// ErrNoRepository is returned by Open when the path holds no git repository.
// Callers fall back to Clone on it.
var ErrNoRepository = errors.New("no git repository at path")

// Workspace is a git working tree with a bot identity attached.
type Workspace struct {
	path        string
	repo        *git.Repository
	tokenSource oauth2.TokenSource
	identity    string
}

// Open attaches to an existing checkout at path. The token source may be nil
// when the remote needs no auth (local remotes in tests).
func Open(_ context.Context, path string, tokenSource oauth2.TokenSource, identity string) (*Workspace, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity cannot be empty")
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNoRepository, path)
	} else if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	return &Workspace{path: path, repo: repo, tokenSource: tokenSource, identity: identity}, nil
}

// Clone creates a fresh single-branch clone of url at ref in a temp
// directory.
func Clone(ctx context.Context, url, ref string, tokenSource oauth2.TokenSource, identity string) (*Workspace, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity cannot be empty")
	}

	dir, err := os.MkdirTemp("", "docbots-clone-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	clog.FromContext(ctx).Infof("Cloning %s (%s) into %s", url, ref, dir)

	auth, err := basicAuth(tokenSource)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	repo, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning repository: %w", err)
	}

	return &Workspace{path: dir, repo: repo, tokenSource: tokenSource, identity: identity}, nil
}

// Root returns the working tree path.
func (w *Workspace) Root() string {
	return w.path
}

// ModifiedPaths returns every path the working tree has touched relative to
// HEAD, sorted.
func (w *Workspace) ModifiedPaths() ([]string, error) {
	worktree, err := w.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	var paths []string
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// RequireClean returns ErrDirty when the tree has uncommitted changes.
// Apply-mode runs call this up front: a pre-dirtied tree makes it impossible
// to attribute changes to the run.
func (w *Workspace) RequireClean() error {
	paths, err := w.ModifiedPaths()
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		return fmt.Errorf("%w: %s", ErrDirty, strings.Join(paths, ", "))
	}
	return nil
}

// ValidateScope returns ErrScopeViolation when any modified path is not
// accepted by allowed.
func (w *Workspace) ValidateScope(allowed func(path string) bool) error {
	paths, err := w.ModifiedPaths()
	if err != nil {
		return err
	}

	var violations []string
	for _, path := range paths {
		if !allowed(path) {
			violations = append(violations, path)
		}
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrScopeViolation, strings.Join(violations, ", "))
	}
	return nil
}

// CheckoutBranch switches to branch, creating it at HEAD when create is set.
// Working tree modifications are kept across the switch.
func (w *Workspace) CheckoutBranch(branch string, create bool) error {
	if branch == "" {
		return errors.New("branch name cannot be empty")
	}

	worktree, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(branch)
	if create {
		head, err := w.repo.Head()
		if err != nil {
			return fmt.Errorf("getting HEAD: %w", err)
		}
		if err := w.repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
			return fmt.Errorf("setting branch reference: %w", err)
		}
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName, Keep: true}); err != nil {
		return fmt.Errorf("checking out branch %s: %w", branch, err)
	}
	return nil
}

// CommitAll stages every modification and commits it with the bot identity.
// Returns the commit hash.
func (w *Workspace) CommitAll(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", errors.New("commit message cannot be empty")
	}

	worktree, err := w.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("staging changes: %w", err)
	}

	email := w.identity
	if !strings.Contains(email, "@") {
		email = fmt.Sprintf("%s@chainguard.dev", email)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  w.identity,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	clog.FromContext(ctx).With("commit", hash.String()).Info("Committed changes")
	return hash.String(), nil
}

// Push pushes branch to origin. Force is used for bot-owned branches that
// are rebuilt on every run.
func (w *Workspace) Push(ctx context.Context, branch string, force bool) error {
	auth, err := basicAuth(w.tokenSource)
	if err != nil {
		return err
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	clog.FromContext(ctx).Infof("Pushing %s (force=%t)", refSpec, force)

	if err := w.repo.Push(&git.PushOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      force,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			clog.FromContext(ctx).Info("Branch already up to date")
			return nil
		}
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}
	return nil
}

func basicAuth(ts oauth2.TokenSource) (*githttp.BasicAuth, error) {
	if ts == nil {
		return nil, nil
	}
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token.AccessToken,
	}, nil
}
