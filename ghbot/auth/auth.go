/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package auth builds authenticated GitHub clients from either a plain token
// (the GITHUB_TOKEN a workflow job receives) or GitHub App credentials. Both
// forms also surface as an oauth2.TokenSource so git pushes can reuse the
// same credential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// Config selects the GitHub credential. Exactly one of Token or the App
// triple must be populated.
type Config struct {
	// Token is a personal access or installation token.
	Token string

	// App credentials, used when Token is empty.
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
}

// Validate checks that the config names exactly one usable credential.
func (c Config) Validate() error {
	if c.Token != "" {
		return nil
	}
	switch {
	case c.AppID == 0:
		return errors.New("either a token or a GitHub App ID is required")
	case c.InstallationID == 0:
		return errors.New("GitHub App installation ID is required")
	case len(c.PrivateKey) == 0:
		return errors.New("GitHub App private key is required")
	}
	return nil
}

// NewClient returns an authenticated go-github client and the token source
// backing it.
func NewClient(ctx context.Context, cfg Config) (*github.Client, oauth2.TokenSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		return github.NewClient(oauth2.NewClient(ctx, ts)), ts, nil
	}

	itr, err := ghinstallation.New(http.DefaultTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("creating app installation transport: %w", err)
	}

	return github.NewClient(&http.Client{Transport: itr}), &installationTokenSource{ctx: ctx, itr: itr}, nil
}

// installationTokenSource adapts ghinstallation's token minting to
// oauth2.TokenSource. Installation tokens are short-lived, so every call
// goes back to the transport, which caches until expiry.
type installationTokenSource struct {
	ctx context.Context
	itr *ghinstallation.Transport
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.itr.Token(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("minting installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: token}, nil
}
