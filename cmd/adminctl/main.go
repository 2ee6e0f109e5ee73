package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ytd.app/adminctl/internal/interfaces/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Fprintln(os.Stderr, "Received shutdown signal, cancelling in-flight requests...")
		cancel()
	}()

	cli.Execute(ctx, &cli.CLIContainer{})
}
