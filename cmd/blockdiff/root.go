package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"blockdiff/internal/config"
	"blockdiff/internal/diff"
	"blockdiff/internal/engine"
	"blockdiff/internal/render"
	"blockdiff/internal/wsdiff"
)

// RootOptions holds global flags and what PersistentPreRunE derives from
// them.
type RootOptions struct {
	ConfigPath string
	Format     string
	Verbose    bool

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "blockdiff",
		Short:         "Script-level change detection for block projects",
		Long:          "Compare two saves of a block-based project script by script and report which scripts were added, removed or modified.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "blockdiff.toml", "path to the TOML config (missing file = defaults)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewBaselineCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	return cmd
}

func newLogger(w io.Writer, lc config.Log, verbose bool) *slog.Logger {
	level, err := lc.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func (o *RootOptions) diffOptions() diff.Options {
	return diff.Options{Context: o.Config.Diff.Context, MaxBytes: o.Config.Diff.MaxBytes}
}

// differ returns the configured differ: in process, or the diff service.
func (o *RootOptions) differ() diff.Differ {
	if o.Config.Diff.Mode == config.ModeWebsocket {
		c := wsdiff.NewClient(o.Config.Diff.URL)
		c.Timeout = o.Config.Diff.Timeout.Duration
		return c
	}
	return diff.Local{Options: o.diffOptions()}
}

func (o *RootOptions) newEngine() *engine.Engine {
	return engine.New(engine.Options{
		Renderer:      render.Outline{},
		Differ:        o.differ(),
		Locale:        o.Config.Locale,
		Render:        render.Options{TabIndent: o.Config.TabIndent},
		MaxConcurrent: o.Config.MaxConcurrent,
		Logger:        o.Logger,
	})
}
