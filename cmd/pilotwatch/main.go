// Package main is the pilotwatch command line client for the Amazon Pilot
// competitor analysis API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd(os.Stdout, os.Stderr)
	if err := execute(ctx, root, a); err != nil {
		stop()
		os.Exit(1)
	}
}
