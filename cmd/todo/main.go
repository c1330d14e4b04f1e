// Command todo manages a to-do list kept in a local SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NSSimpleApps/TestToDoList/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
