package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/chargectl/cmd/chargectl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, os.Args)
	stop()

	os.Exit(commands.ExitCode(err))
}
