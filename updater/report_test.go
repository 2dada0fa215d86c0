/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package updater_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/docbots/updater"
)

func TestReportWrite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	report := &updater.Report{
		Mode: updater.ModeApply,
		Targets: []updater.TargetResult{
			{File: "AGENTS.md", Changed: true, Summary: "Documented the new CLI flags."},
			{File: "pkg/AGENTS.md", Changed: false, Summary: "No changes"},
		},
		Applied: true,
	}
	if err := report.Write(root); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, updater.ReportFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got updater.Report
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != updater.ModeApply || len(got.Targets) != 2 || !got.Applied {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := os.Stat(filepath.Join(root, updater.AppliedMarkerFile)); err != nil {
		t.Fatalf("expected applied marker: %v", err)
	}
}

func TestReportWrite_NoMarkerWhenNotApplied(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	report := &updater.Report{Mode: updater.ModeSuggest}
	if err := report.Write(root); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, updater.AppliedMarkerFile)); err == nil {
		t.Fatal("marker must not be written without applied changes")
	}
}

func TestReportSummarize(t *testing.T) {
	t.Parallel()
	report := &updater.Report{
		Mode: updater.ModeSuggest,
		Targets: []updater.TargetResult{
			{File: "AGENTS.md", Changed: true, Summary: "Documented the new CLI flags."},
			{File: "pkg/AGENTS.md", Changed: false, Summary: "No changes"},
		},
	}

	var buf bytes.Buffer
	if err := report.Summarize(&buf); err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"AGENTS.md", "pkg/AGENTS.md", "yes", "no", "Documented the new CLI flags."} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
