// Command blockdiff compares saves of a block-based project script by
// script, keeps baselines of earlier saves, and serves the diff protocol
// used by the editor add-on.
//
//	blockdiff diff old.sb3 new.sb3 [--target Cat] [--bundle out.zip]
//	blockdiff baseline save|diff|clear game.sb3
//	blockdiff check game.sb3
//	blockdiff serve [--addr :8000]
//	blockdiff watch game.sb3
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		stop()
		os.Exit(GetExitCode(err))
	}
}
