package main

import (
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"blockdiff/internal/project"
	"blockdiff/internal/report"
)

type diffFlags struct {
	target string
	bundle string
}

// NewDiffCommand compares two project files.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &diffFlags{}
	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare the scripts of two project files",
		Long: `Compare two saves of a project (.sb3 or project.json).

Every sprite whose blocks changed is compared script by script. Scripts are
matched by their rendered text, so moving a script on the canvas is not a
change.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, rootOpts, flags, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "compare only this sprite (\"Stage (stage)\" for the stage)")
	cmd.Flags().StringVar(&flags.bundle, "bundle", "", "also write a zip report to this path")
	return cmd
}

func runDiff(cmd *cobra.Command, opts *RootOptions, flags *diffFlags, oldPath, newPath string) error {
	oldP, err := project.Load(oldPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load old project", err)
	}
	newP, err := project.Load(newPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load new project", err)
	}

	targets, err := compareProjects(cmd.Context(), opts.newEngine(), oldP, newP, flags.target)
	if err != nil {
		return err
	}
	if flags.bundle != "" {
		r := report.Report{Old: filepath.Base(oldPath), New: filepath.Base(newPath), Targets: targets}
		if err := report.Write(flags.bundle, r, opts.diffOptions()); err != nil {
			return WrapExitError(ExitFailure, "write report", err)
		}
		opts.Logger.Info("report written", "path", flags.bundle)
	}

	out := Output{Format: opts.Format, W: cmd.OutOrStdout()}
	return out.Emit(targets, func(w io.Writer) { printTargets(w, targets) })
}
