// Package report writes the outcome of a project comparison as a
// reproducible zip archive:
//
//	README.md                        how to read the archive
//	report.json                      per-target results and failures
//	diffs/<target>-<scriptNo>.patch  one unified patch per changed script
//
// Entries are written in a fixed order with fixed timestamps, so equal
// comparisons produce byte-identical archives.
package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"blockdiff/internal/diff"
	"blockdiff/internal/engine"
	"blockdiff/internal/ziputil"
)

// Version of the report.json layout.
const Version = 1

// Target holds the comparison of one sprite or the stage.
type Target struct {
	Key      string              `json:"key"`
	Status   string              `json:"status"`
	Results  []engine.DiffResult `json:"results"`
	Failures []engine.Failure    `json:"failures,omitempty"`
	// Patches lists the archive entries written for Results, in order.
	Patches []string `json:"patches,omitempty"`
}

// Report is the archive's index.
type Report struct {
	Version int      `json:"version"`
	Old     string   `json:"old"`
	New     string   `json:"new"`
	Context int      `json:"context"`
	Targets []Target `json:"targets"`
}

// Write creates the archive at path, creating parent directories.
func Write(path string, r Report, opt diff.Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTo(f, r, opt); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes the archive to w. Targets are sorted by key; r is not
// modified.
func WriteTo(w io.Writer, r Report, opt diff.Options) error {
	r.Version = Version
	r.Context = opt.Context
	if r.Context <= 0 {
		r.Context = diff.DefaultContext
	}
	targets := make([]Target, len(r.Targets))
	copy(targets, r.Targets)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Key < targets[j].Key })

	used := make(map[string]bool)
	patches := make(map[string]string)
	var order []string
	for i := range targets {
		t := &targets[i]
		t.Patches = nil
		for _, res := range t.Results {
			name, body := patchFor(t.Key, res, opt, used)
			t.Patches = append(t.Patches, name)
			patches[name] = body
			order = append(order, name)
		}
	}
	r.Targets = targets

	zw := zip.NewWriter(w)
	readme, err := renderReadme(r)
	if err != nil {
		return fmt.Errorf("readme: %w", err)
	}
	if err := ziputil.WriteText(zw, "README.md", readme); err != nil {
		return err
	}
	if err := ziputil.WriteJSON(zw, "report.json", r); err != nil {
		return err
	}
	for _, name := range order {
		if err := ziputil.WriteText(zw, name, []byte(patches[name])); err != nil {
			return err
		}
	}
	return zw.Close()
}
