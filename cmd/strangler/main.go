package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"delta-strangler/internal/cli"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/metrics"
)

func main() {
	metrics.Init()
	logger := logging.WithComponent(logging.NewLoggerWithConfig(logging.LogConfig{Level: "info", Console: true}, ""), "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel)

	if err := cli.NewRootCmd(logger).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

// handleShutdown cancels the run on SIGINT or SIGTERM. A live monitor
// returns an INTERRUPTED decision and leaves both legs open.
func handleShutdown(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	cancel()
}
