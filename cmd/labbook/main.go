// Command labbook is the command-line front end of the lab record keeper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := execute(ctx, newApp(os.Stdout, os.Stderr), os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "labbook: %v\n", err)
		os.Exit(exitCode(err))
	}
}
