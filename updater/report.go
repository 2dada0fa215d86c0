/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const (
	// ReportFile is the machine-readable run report, written at the repo
	// root for the hosting workflow to inspect.
	ReportFile = ".agents_update_report.json"
	// AppliedMarkerFile signals to the hosting workflow that apply mode
	// made changes.
	AppliedMarkerFile = ".agents_updates_applied"
)

// TargetResult records the outcome for one AGENTS.md target.
type TargetResult struct {
	File    string `json:"file"`
	Changed bool   `json:"changed"`
	Summary string `json:"summary"`
}

// Report is the outcome of a full updater run.
type Report struct {
	Mode    Mode           `json:"mode"`
	Targets []TargetResult `json:"targets"`
	Applied bool           `json:"applied"`
}

// Write persists the report (and the applied marker, when set) at root.
func (r *Report) Write(root string) error {
	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, ReportFile), append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if r.Applied {
		if err := os.WriteFile(filepath.Join(root, AppliedMarkerFile), []byte("1\n"), 0o644); err != nil {
			return fmt.Errorf("writing applied marker: %w", err)
		}
	}
	return nil
}

// Summarize renders a human-readable table of the run to w.
func (r *Report) Summarize(w io.Writer) error {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader([]string{"AGENTS.md", "Changed", "Summary"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
	)

	for _, target := range r.Targets {
		changed := "no"
		if target.Changed {
			changed = "yes"
		}
		if err := table.Append([]string{target.File, changed, target.Summary}); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}
	return table.Render()
}
