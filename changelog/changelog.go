/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changelog edits Keep a Changelog documents. All operations are
// string surgery that leaves unrelated text byte-for-byte intact: the format
// is prose, and contributors hand-edit these files between bot runs.
package changelog

import (
	"fmt"
	"regexp"
	"strings"
)

// UnreleasedHeading is the section all new entries land under.
const UnreleasedHeading = "## [Unreleased]"

// Bootstrap returns a fresh changelog skeleton.
func Bootstrap() string {
	return "# Changelog\n\n" +
		"All notable changes to this project will be documented in this file.\n\n" +
		"The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/), " +
		"and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html).\n\n" +
		UnreleasedHeading + "\n\n"
}

// HasReference reports whether the document already references the PR
// number. This is the idempotence check: a recorded #N means the PR's entry
// exists and re-running the bot must not duplicate it.
func HasReference(text string, prNumber int) bool {
	re := regexp.MustCompile(fmt.Sprintf(`#%d\b`, prNumber))
	return re.MatchString(text)
}

// EnsureUnreleased guarantees the document has an Unreleased section,
// inserting one after the header prose (before the first version heading, or
// at the end) when missing.
func EnsureUnreleased(text string) string {
	if strings.Contains(text, UnreleasedHeading) {
		return text
	}

	if idx := strings.Index(text, "\n## "); idx >= 0 {
		// Insert before the first existing section heading.
		return text[:idx+1] + UnreleasedHeading + "\n\n" + text[idx+1:]
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + "\n" + UnreleasedHeading + "\n\n"
}

// ensureSection guarantees a "### category" subsection exists under
// Unreleased.
func ensureSection(text, category string) string {
	section := "\n### " + category + "\n"
	// Only look inside the Unreleased block: the same category heading under
	// a released version must not satisfy the check.
	body, _ := unreleasedBounds(text)
	if strings.Contains(body, section) {
		return text
	}
	return strings.Replace(text,
		UnreleasedHeading+"\n",
		UnreleasedHeading+"\n\n### "+category+"\n\n", 1)
}

// unreleasedBounds returns the Unreleased block (heading included, up to the
// next "## " heading or EOF) and its start offset. Returns ("", -1) when the
// section is missing.
func unreleasedBounds(text string) (string, int) {
	start := strings.Index(text, UnreleasedHeading)
	if start < 0 {
		return "", -1
	}
	rest := text[start+len(UnreleasedHeading):]
	if idx := strings.Index(rest, "\n## "); idx >= 0 {
		return text[start : start+len(UnreleasedHeading)+idx+1], start
	}
	return text[start:], start
}

// Insert places the entry at the top of its category section under
// Unreleased, creating the Unreleased section and the category subsection as
// needed. Callers are expected to have run the HasReference idempotence
// check first.
func Insert(text string, e Entry) (string, error) {
	if !ValidCategory(e.Category) {
		return "", fmt.Errorf("unknown category %q", e.Category)
	}

	text = EnsureUnreleased(text)
	text = ensureSection(text, e.Category)

	body, offset := unreleasedBounds(text)
	marker := "### " + e.Category + "\n"
	idx := strings.Index(body, marker)
	if idx < 0 {
		// ensureSection guarantees the marker; reaching here means the
		// document is malformed (e.g. heading inside a code fence).
		return "", fmt.Errorf("category section %q not found under %s", e.Category, UnreleasedHeading)
	}

	at := offset + idx + len(marker)
	return text[:at] + e.Render() + text[at:], nil
}
