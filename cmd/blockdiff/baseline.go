package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blockdiff/internal/cache"
	"blockdiff/internal/project"
	"blockdiff/internal/report"
	"blockdiff/internal/validate"
)

// NewBaselineCommand groups the baseline subcommands.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Save a project as the baseline and compare later saves against it",
	}
	cmd.AddCommand(newBaselineSaveCommand(rootOpts))
	cmd.AddCommand(newBaselineDiffCommand(rootOpts))
	cmd.AddCommand(newBaselineClearCommand(rootOpts))
	return cmd
}

// baselineDir resolves the cache directory of the project at path.
func baselineDir(opts *RootOptions, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return cache.CacheDir(opts.Config.Cache.Dir, abs), nil
}

func projectName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func newBaselineSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <project>",
		Short: "Record the current state of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "load project", err)
			}
			dir, err := baselineDir(rootOpts, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "resolve cache dir", err)
			}
			s, err := cache.SaveBaseline(dir, projectName(args[0]), p, time.Now())
			if err != nil {
				return WrapExitError(ExitFailure, "save baseline", err)
			}
			if err := validate.Snapshot(s); err != nil {
				rootOpts.Logger.Warn("baseline has problems", "error", err)
			}
			rootOpts.Logger.Debug("baseline saved", "dir", dir, "targets", len(s.Targets))

			out := Output{Format: rootOpts.Format, W: cmd.OutOrStdout()}
			return out.Emit(s, func(w io.Writer) {
				fmt.Fprintf(w, "Saved baseline of %s (%d targets) to %s\n", s.Project, len(s.Targets), dir)
			})
		},
	}
}

// baselineDiff is the result of comparing a project with its baseline.
type baselineDiff struct {
	Baseline string          `json:"baseline"`
	Delta    cache.Delta     `json:"delta"`
	Targets  []report.Target `json:"targets"`
}

func newBaselineDiffCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &diffFlags{}
	cmd := &cobra.Command{
		Use:   "diff <project>",
		Short: "Compare a project with its saved baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := baselineDir(rootOpts, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "resolve cache dir", err)
			}
			base, err := cache.Load(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "load baseline", err)
			}
			if base == nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("no baseline for %s; run \"blockdiff baseline save\" first", args[0]))
			}
			if err := validate.Snapshot(base); err != nil {
				return WrapExitError(ExitCommandError, "baseline index", err)
			}
			oldP, err := cache.Restore(dir, base)
			if err != nil {
				return WrapExitError(ExitCommandError, "restore baseline", err)
			}
			newP, err := project.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "load project", err)
			}
			curr, err := cache.Describe(projectName(args[0]), newP, time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "describe project", err)
			}

			targets, err := compareProjects(cmd.Context(), rootOpts.newEngine(), oldP, newP, flags.target)
			if err != nil {
				return err
			}
			res := baselineDiff{Baseline: base.Created, Delta: cache.BuildDelta(base, curr), Targets: targets}

			if flags.bundle != "" {
				r := report.Report{Old: base.Project + "@" + base.Created, New: filepath.Base(args[0]), Targets: targets}
				if err := report.Write(flags.bundle, r, rootOpts.diffOptions()); err != nil {
					return WrapExitError(ExitFailure, "write report", err)
				}
			}

			out := Output{Format: rootOpts.Format, W: cmd.OutOrStdout()}
			return out.Emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "Baseline %s\n", res.Baseline)
				for _, r := range res.Delta.Renamed {
					fmt.Fprintf(w, "%s: renamed to %s\n", r.From, r.To)
				}
				printTargets(w, res.Targets)
			})
		},
	}
	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "compare only this sprite")
	cmd.Flags().StringVar(&flags.bundle, "bundle", "", "also write a zip report to this path")
	return cmd
}

func newBaselineClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <project>",
		Short: "Forget the saved baseline of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := baselineDir(rootOpts, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "resolve cache dir", err)
			}
			if err := cache.Clear(dir); err != nil {
				return WrapExitError(ExitFailure, "clear baseline", err)
			}
			rootOpts.Logger.Info("baseline cleared", "dir", dir)
			return nil
		},
	}
}
