package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"blockdiff/internal/diff"
	"blockdiff/internal/wsdiff"
)

// NewServeCommand hosts the diff protocol for the editor add-on.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket diff protocol",
		Long: `Serve the websocket diff protocol used by the editor add-on.

Requests of the form {"command":"diff","data":{"GitDiff":{...}}} are answered
with {"added","removed","diffed"}; any other command gets {}. Diffs are always
computed in process, whatever diff.mode says.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, addr string) error {
	log := opts.Logger
	mux := http.NewServeMux()
	mux.Handle("/", wsdiff.NewHandler(diff.Local{Options: opts.diffOptions()}, log))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("diff service listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "listen", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("diff service stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	return nil
}
