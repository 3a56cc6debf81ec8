package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"blockdiff/internal/cache"
	"blockdiff/internal/engine"
	"blockdiff/internal/project"
)

// highlight is one watch event: the live ids to mark for a sprite.
type highlight struct {
	Target  string   `json:"target"`
	IDs     []string `json:"ids"`
	Changed int      `json:"changed"`
}

type watchFlags struct {
	once     bool
	debounce time.Duration
}

// NewWatchCommand re-runs highlight correlation whenever the project file
// is saved. One tracker session spans the whole run, so a save that
// momentarily resolves nothing keeps the previous highlight.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Print the changed scripts of a project on every save",
		Long: `Watch a project file and, on every save, print the top-level block ids of
the scripts that differ from the saved baseline. Without a baseline the
project as first read is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), rootOpts, flags, args[0])
		},
	}
	cmd.Flags().BoolVar(&flags.once, "once", false, "run a single pass and exit")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", 200*time.Millisecond, "wait this long after the last write before comparing")
	return cmd
}

type watcher struct {
	path string
	base *project.Project
	eng  *engine.Engine
	out  Output
	opts *RootOptions
}

func runWatch(ctx context.Context, w io.Writer, opts *RootOptions, flags *watchFlags, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve path", err)
	}
	base, err := loadBaseline(opts, abs)
	if err != nil {
		return err
	}
	wt := &watcher{path: abs, base: base, eng: opts.newEngine(), out: Output{Format: opts.Format, W: w}, opts: opts}

	if flags.once {
		return wt.pass(ctx)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitFailure, "start watcher", err)
	}
	defer fw.Close()
	// Editors replace the file on save, so watch the directory.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return WrapExitError(ExitFailure, "watch", err)
	}
	opts.Logger.Info("watching", "path", abs)
	defer func() {
		opts.Logger.Info("watch stopped", "highlighted", wt.eng.Tracker().Sprites())
	}()

	timer := time.NewTimer(flags.debounce)
	timer.Stop()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(flags.debounce)
		case <-timer.C:
			if err := wt.pass(ctx); err != nil {
				opts.Logger.Warn("comparison failed", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// loadBaseline restores the saved baseline of the project at abs, falling
// back to the file as it is now.
func loadBaseline(opts *RootOptions, abs string) (*project.Project, error) {
	dir := cache.CacheDir(opts.Config.Cache.Dir, abs)
	snap, err := cache.Load(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load baseline", err)
	}
	if snap != nil {
		p, err := cache.Restore(dir, snap)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "restore baseline", err)
		}
		opts.Logger.Debug("using saved baseline", "created", snap.Created)
		return p, nil
	}
	p, err := project.Load(abs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load project", err)
	}
	opts.Logger.Info("no saved baseline, comparing against the current file")
	return p, nil
}

// pass compares the file with the baseline and emits one highlight per
// changed sprite still present in the file.
func (wt *watcher) pass(ctx context.Context) error {
	cur, err := project.Load(wt.path)
	if err != nil {
		return err
	}
	var events []highlight
	tracker := wt.eng.Tracker()
	for _, key := range project.ChangedTargets(wt.base, cur) {
		t, err := cur.Target(key)
		if err != nil {
			// Deleted from the editor; nothing left to highlight.
			tracker.Forget(key)
			continue
		}
		live, err := t.TopLevel()
		if err != nil {
			return fmt.Errorf("target %q: %w", key, err)
		}
		ids, cmp, err := wt.eng.Highlight(ctx, key, wt.base.Blocks(key), cur.Blocks(key), live)
		if err != nil {
			return fmt.Errorf("target %q: %w", key, err)
		}
		if ids == nil {
			continue
		}
		events = append(events, highlight{Target: key, IDs: ids, Changed: len(cmp.Results)})
	}
	return wt.out.Emit(events, func(w io.Writer) {
		if len(events) == 0 {
			fmt.Fprintln(w, "No script changes.")
		}
		for _, e := range events {
			fmt.Fprintf(w, "%s: %v\n", e.Target, e.IDs)
		}
	})
}
