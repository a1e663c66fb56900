// app is the warehouse operations command line.
//
// Usage: app <command> [flags]   (app help lists the commands)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"warehouse-ops/internal/adapters/cli"
	"warehouse-ops/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		if code := core.CodeOf(err); code != core.CodeInternal {
			fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
