package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"blockdiff/internal/engine"
	"blockdiff/internal/project"
)

func catProject(steps string) string {
	return fmt.Sprintf(`{"targets": [
  {"name": "Stage", "isStage": true, "blocks": {}},
  {"name": "Cat", "isStage": false, "blocks": {
    "a": {"opcode": "event_whenflagclicked", "next": "b", "parent": null, "inputs": {}, "fields": {}, "topLevel": true},
    "b": {"opcode": "motion_movesteps", "next": null, "parent": "a", "inputs": {"STEPS": [1, [4, %q]]}, "fields": {}, "topLevel": false}
  }}
]}`, steps)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeConfig points the cache at a temp dir so tests never touch the
// working tree.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cacheDir := filepath.ToSlash(filepath.Join(dir, "cache"))
	return writeFile(t, dir, "blockdiff.toml", fmt.Sprintf("[cache]\ndir = %q\n[log]\nlevel = \"error\"\n", cacheDir))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"diff", "baseline", "check", "serve", "watch"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "format", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--config", writeConfig(t, dir), "--format", "xml", "check", writeFile(t, dir, "p.json", catProject("10")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDiffText(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", catProject("10"))
	newPath := writeFile(t, dir, "new.json", catProject("20"))

	out, err := run(t, "--config", writeConfig(t, dir), "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cat: changed, 1 script(s) changed")
	assert.Contains(t, out, "script 0 modified +1 -1")
	assert.Contains(t, out, "-motion_movesteps (STEPS: 10)")
	assert.Contains(t, out, "+motion_movesteps (STEPS: 20)")
	assert.NotContains(t, out, "Stage")
}

func TestDiffIdenticalProjects(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "p.json", catProject("10"))
	out, err := run(t, "--config", writeConfig(t, dir), "diff", p, p)
	require.NoError(t, err)
	assert.Equal(t, "No script changes.\n", out)
}

func TestDiffJSON(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", catProject("10"))
	newPath := writeFile(t, dir, "new.json", catProject("20"))

	out, err := run(t, "--config", writeConfig(t, dir), "--format", "json", "diff", oldPath, newPath)
	require.NoError(t, err)

	var targets []struct {
		Key     string `json:"key"`
		Status  string `json:"status"`
		Results []struct {
			Status  string `json:"status"`
			Added   int    `json:"added"`
			Removed int    `json:"removed"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	require.Len(t, targets, 1)
	assert.Equal(t, "Cat", targets[0].Key)
	assert.Equal(t, "changed", targets[0].Status)
	require.Len(t, targets[0].Results, 1)
	assert.Equal(t, "modified", targets[0].Results[0].Status)
	assert.Equal(t, 1, targets[0].Results[0].Added)
	assert.Equal(t, 1, targets[0].Results[0].Removed)
}

func TestDiffYAML(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", catProject("10"))
	newPath := writeFile(t, dir, "new.json", catProject("20"))

	out, err := run(t, "--config", writeConfig(t, dir), "--format", "yaml", "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "{")

	var targets []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &targets))
	require.Len(t, targets, 1)
	assert.Equal(t, "Cat", targets[0]["key"])
}

func TestDiffAddedTarget(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", `{"targets": [{"name": "Stage", "isStage": true, "blocks": {}}]}`)
	newPath := writeFile(t, dir, "new.json", catProject("10"))

	out, err := run(t, "--config", writeConfig(t, dir), "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cat: added, 1 script(s) changed")
	assert.Contains(t, out, "script 0 added +2 -0")
}

func TestDiffUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "p.json", catProject("10"))
	_, err := run(t, "--config", writeConfig(t, dir), "diff", "-t", "Dog", p, p)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDiffReadsArchives(t *testing.T) {
	dir := t.TempDir()
	sb3 := filepath.Join(dir, "old.sb3")
	f, err := os.Create(sb3)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("project.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(catProject("10")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	newPath := writeFile(t, dir, "new.json", catProject("20"))
	out, err := run(t, "--config", writeConfig(t, dir), "diff", sb3, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cat: changed")
}

func TestDiffWritesBundle(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", catProject("10"))
	newPath := writeFile(t, dir, "new.json", catProject("20"))
	bundle := filepath.Join(dir, "report.zip")

	_, err := run(t, "--config", writeConfig(t, dir), "diff", "--bundle", bundle, oldPath, newPath)
	require.NoError(t, err)

	zr, err := zip.OpenReader(bundle)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "README.md")
	assert.Contains(t, names, "report.json")
	assert.Contains(t, names, "diffs/Cat-0.patch")
}

func TestBaselineSaveDiffClear(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	path := writeFile(t, dir, "game.json", catProject("10"))

	out, err := run(t, "--config", cfg, "baseline", "save", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved baseline of game (2 targets)")

	out, err = run(t, "--config", cfg, "baseline", "diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No script changes.")

	writeFile(t, dir, "game.json", catProject("20"))
	out, err = run(t, "--config", cfg, "--format", "json", "baseline", "diff", path)
	require.NoError(t, err)
	var res struct {
		Delta struct {
			Changed []struct {
				Key string `json:"key"`
			} `json:"changed"`
		} `json:"delta"`
		Targets []struct {
			Key string `json:"key"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "Cat", res.Targets[0].Key)
	require.Len(t, res.Delta.Changed, 1)
	assert.Equal(t, "Cat", res.Delta.Changed[0].Key)

	_, err = run(t, "--config", cfg, "baseline", "clear", path)
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "baseline", "diff", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCleanProject(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "p.json", catProject("10"))
	out, err := run(t, "--config", writeConfig(t, dir), "check", p)
	require.NoError(t, err)
	assert.Contains(t, out, "Cat: ok (1 scripts)")
	assert.Contains(t, out, "Stage (stage): ok (0 scripts)")
}

func TestCheckReportsDanglingNext(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "p.json", `{"targets": [{"name": "Cat", "isStage": false, "blocks": {
  "a": {"opcode": "event_whenflagclicked", "next": "gone", "parent": null, "inputs": {}, "fields": {}}
}}]}`)
	out, err := run(t, "--config", writeConfig(t, dir), "check", p)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Cat: 1 problem(s)")
	assert.Contains(t, out, "gone")
}

func TestWatchOnceAgainstBaseline(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	path := writeFile(t, dir, "game.json", catProject("10"))

	out, err := run(t, "--config", cfg, "watch", "--once", path)
	require.NoError(t, err)
	assert.Equal(t, "No script changes.\n", out)

	_, err = run(t, "--config", cfg, "baseline", "save", path)
	require.NoError(t, err)
	writeFile(t, dir, "game.json", catProject("20"))

	out, err = run(t, "--config", cfg, "--format", "json", "watch", "--once", path)
	require.NoError(t, err)
	var events []highlight
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, highlight{Target: "Cat", IDs: []string{"a"}, Changed: 1}, events[0])
}

func TestWatchPassForgetsDeletedSprites(t *testing.T) {
	dir := t.TempDir()
	base, err := project.Parse([]byte(catProject("10")))
	require.NoError(t, err)
	path := writeFile(t, dir, "game.json", catProject("20"))

	var out bytes.Buffer
	wt := &watcher{path: path, base: base, eng: engine.New(engine.Options{}), out: Output{Format: "text", W: &out}}
	require.NoError(t, wt.pass(context.Background()))
	assert.Equal(t, "Cat: [a]\n", out.String())
	assert.Equal(t, []string{"Cat"}, wt.eng.Tracker().Sprites())

	writeFile(t, dir, "game.json", `{"targets": [{"name": "Stage", "isStage": true, "blocks": {}}]}`)
	out.Reset()
	require.NoError(t, wt.pass(context.Background()))
	assert.Equal(t, "No script changes.\n", out.String())
	assert.Empty(t, wt.eng.Tracker().Sprites())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))
	err := WrapExitError(ExitFailure, "load", os.ErrNotExist)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, strings.HasPrefix(err.Error(), "load: "))
}
