// Package main runs the senses command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/senses/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
