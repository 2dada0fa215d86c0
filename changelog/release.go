/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// BumpLevel selects which semver component a release increments.
type BumpLevel string

const (
	BumpPatch BumpLevel = "patch"
	BumpMinor BumpLevel = "minor"
	BumpMajor BumpLevel = "major"
)

// ParseBumpLevel validates a bump level string.
func ParseBumpLevel(s string) (BumpLevel, error) {
	switch BumpLevel(s) {
	case BumpPatch, BumpMinor, BumpMajor:
		return BumpLevel(s), nil
	}
	return "", fmt.Errorf("invalid bump level %q (want patch, minor, or major)", s)
}

// LevelFromLabels derives the bump level from PR labels. An explicit
// semver:* label wins, highest named level applying; breaking-change implies
// major only when no semver:* label is present. The second return is false
// when no label determines a level.
func LevelFromLabels(labels []string) (BumpLevel, bool) {
	var level BumpLevel
	breaking := false
	for _, l := range labels {
		switch l {
		case "semver:major":
			return BumpMajor, true
		case "semver:minor":
			level = BumpMinor
		case "semver:patch":
			if level == "" {
				level = BumpPatch
			}
		case "breaking-change":
			breaking = true
		}
	}
	if level != "" {
		return level, true
	}
	if breaking {
		return BumpMajor, true
	}
	return "", false
}

// versionHeading matches released section headings like "## [1.2.3] - 2026-01-02".
var versionHeading = regexp.MustCompile(`(?m)^## \[(\d+\.\d+\.\d+[^\]]*)\]`)

// LatestVersion returns the most recent released version recorded in the
// document, or 0.0.0 when none exists. Headings are expected newest-first,
// so the first match wins.
func LatestVersion(text string) (*semver.Version, error) {
	m := versionHeading.FindStringSubmatch(text)
	if m == nil {
		return semver.MustParse("0.0.0"), nil
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parsing version heading %q: %w", m[1], err)
	}
	return v, nil
}

// NextVersion bumps v by the given level.
func NextVersion(v *semver.Version, level BumpLevel) (*semver.Version, error) {
	switch level {
	case BumpPatch:
		next := v.IncPatch()
		return &next, nil
	case BumpMinor:
		next := v.IncMinor()
		return &next, nil
	case BumpMajor:
		next := v.IncMajor()
		return &next, nil
	}
	return nil, fmt.Errorf("invalid bump level %q", level)
}

// ErrNothingToRelease is returned when the Unreleased section holds no
// entries to cut a release from.
var ErrNothingToRelease = errors.New("unreleased section has no entries")

// Release moves the current Unreleased body under a new version heading
// dated date, bumped from the latest recorded version by level, and
// re-creates an empty Unreleased section above it. Returns the updated
// document and the released version.
func Release(text string, level BumpLevel, date time.Time) (string, *semver.Version, error) {
	body, offset := unreleasedBounds(text)
	if offset < 0 {
		return "", nil, ErrNothingToRelease
	}

	content := strings.TrimPrefix(body, UnreleasedHeading)
	if !strings.Contains(content, "\n - ") && !strings.Contains(content, "\n- ") {
		return "", nil, ErrNothingToRelease
	}

	latest, err := LatestVersion(text)
	if err != nil {
		return "", nil, err
	}
	next, err := NextVersion(latest, level)
	if err != nil {
		return "", nil, err
	}

	heading := fmt.Sprintf("## [%s] - %s", next, date.Format("2006-01-02"))
	replacement := UnreleasedHeading + "\n\n" + heading + strings.TrimRight(content, "\n") + "\n\n"

	return text[:offset] + replacement + text[offset+len(body):], next, nil
}
