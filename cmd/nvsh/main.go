// Command nvsh drives the shell variable engine: profiles, scope scenarios,
// trace inspection and an interactive session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/nvsh/internal/cli"
	"github.com/roach88/nvsh/internal/nv"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := execute(ctx)
	if err == nil {
		return cli.ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return cli.GetExitCode(err)
}

// execute runs the root command. A fatal shell error escaping any command
// is converted here rather than crashing the process.
func execute(ctx context.Context) (err error) {
	defer nv.RecoverFatal(&err)
	return cli.NewRootCommand().ExecuteContext(ctx)
}
