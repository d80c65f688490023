package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopflow/infrastructure/config"
	"shopflow/presentation/terminal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := terminal.NewApp(cfg, cfg.NewLogger())
	if err := app.RootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
