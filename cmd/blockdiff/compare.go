package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"blockdiff/internal/engine"
	"blockdiff/internal/project"
	"blockdiff/internal/report"
)

// Target statuses.
const (
	targetAdded     = "added"
	targetRemoved   = "removed"
	targetChanged   = "changed"
	targetUnchanged = "unchanged"
)

// compareProjects compares every target whose block map changed, or only
// the target named by only.
func compareProjects(ctx context.Context, eng *engine.Engine, oldP, newP *project.Project, only string) ([]report.Target, error) {
	keys := project.ChangedTargets(oldP, newP)
	if only != "" {
		_, errOld := oldP.Target(only)
		_, errNew := newP.Target(only)
		if errOld != nil && errNew != nil {
			return nil, WrapExitError(ExitCommandError, "target", errNew)
		}
		keys = []string{only}
	}

	out := make([]report.Target, 0, len(keys))
	for _, key := range keys {
		cmp, err := eng.Compare(ctx, oldP.Blocks(key), newP.Blocks(key))
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", key, err)
		}
		out = append(out, report.Target{
			Key:      key,
			Status:   targetStatus(oldP, newP, key, cmp),
			Results:  cmp.Results,
			Failures: cmp.Failures,
		})
	}
	return out, nil
}

func targetStatus(oldP, newP *project.Project, key string, cmp *engine.Comparison) string {
	_, errOld := oldP.Target(key)
	_, errNew := newP.Target(key)
	switch {
	case errOld != nil:
		return targetAdded
	case errNew != nil:
		return targetRemoved
	case cmp.Changed() || len(cmp.Failures) > 0:
		return targetChanged
	default:
		return targetUnchanged
	}
}

func printTargets(w io.Writer, targets []report.Target) {
	if len(targets) == 0 {
		fmt.Fprintln(w, "No script changes.")
		return
	}
	for _, t := range targets {
		fmt.Fprintf(w, "%s: %s", t.Key, t.Status)
		if n := len(t.Results); n > 0 {
			fmt.Fprintf(w, ", %d script(s) changed", n)
		}
		fmt.Fprintln(w)
		for _, r := range t.Results {
			fmt.Fprintf(w, "  script %d %s +%d -%d\n", r.ScriptNo, r.Status, r.Added, r.Removed)
			for _, line := range strings.Split(r.Diffed, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
		for _, f := range t.Failures {
			fmt.Fprintf(w, "  script %d %s: diff unavailable: %s\n", f.ScriptNo, f.Status, f.Reason)
		}
	}
}
