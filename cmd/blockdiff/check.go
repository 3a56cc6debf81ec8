package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"blockdiff/internal/cache"
	"blockdiff/internal/project"
	"blockdiff/internal/validate"
)

// checkResult lists the problems found in one target.
type checkResult struct {
	Key      string   `json:"key"`
	Scripts  int      `json:"scripts"`
	Problems []string `json:"problems,omitempty"`
}

// NewCheckCommand validates the block graphs of a project and, when one
// exists, its baseline index.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <project>",
		Short: "Report structural problems in a project's block graphs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "load project", err)
			}

			results := checkProject(p)
			if dir, err := baselineDir(rootOpts, args[0]); err == nil {
				if base, err := cache.Load(dir); err == nil && base != nil {
					res := checkResult{Key: "baseline"}
					if err := validate.Snapshot(base); err != nil {
						res.Problems = strings.Split(err.Error(), "\n")
					}
					results = append(results, res)
				}
			}

			failed := 0
			for _, r := range results {
				failed += len(r.Problems)
			}
			out := Output{Format: rootOpts.Format, W: cmd.OutOrStdout()}
			if err := out.Emit(results, func(w io.Writer) { printCheck(w, results) }); err != nil {
				return err
			}
			if failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d problem(s) found", failed))
			}
			return nil
		},
	}
}

func checkProject(p *project.Project) []checkResult {
	results := make([]checkResult, 0, len(p.Targets))
	for _, t := range p.Targets {
		res := checkResult{Key: t.Key()}
		g, err := t.Graph()
		if err != nil {
			res.Problems = []string{err.Error()}
			results = append(results, res)
			continue
		}
		res.Scripts = len(g.ScriptRoots())
		if err := validate.Graph(g); err != nil {
			res.Problems = strings.Split(err.Error(), "\n")
		}
		results = append(results, res)
	}
	return results
}

func printCheck(w io.Writer, results []checkResult) {
	for _, r := range results {
		if len(r.Problems) == 0 {
			fmt.Fprintf(w, "%s: ok (%d scripts)\n", r.Key, r.Scripts)
			continue
		}
		fmt.Fprintf(w, "%s: %d problem(s)\n", r.Key, len(r.Problems))
		for _, p := range r.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}
