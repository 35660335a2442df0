package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appLog "maintdash/internal/log"
)

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("maintdash failed", err)
		os.Exit(1)
	}
}
