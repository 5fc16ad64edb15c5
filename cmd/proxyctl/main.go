package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"proxyctl/internal/shared/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("An error occurred")
		stop()
		os.Exit(1)
	}
}
