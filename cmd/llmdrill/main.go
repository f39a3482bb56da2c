// Command llmdrill drives an open-loop load test against a generation-API
// endpoint, replaying or synthesizing request timing from a trace dataset.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/llmdrill/internal/config"
	"github.com/bc-dunia/llmdrill/internal/supervisor"
)

func main() {
	cfg := config.ExitOnError(os.Args[1:])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup, err := supervisor.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llmdrill: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("llmdrill run %s: protocol=%s dataset=%s endpoint=%s\n",
		sup.RunID(), cfg.Protocol, cfg.Dataset, cfg.Endpoint)

	runDone := make(chan int, 1)
	go func() { runDone <- sup.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case code := <-runDone:
		os.Exit(code)
	case <-sigCh:
	}

	fmt.Println("\nShutting down llmdrill...")
	sup.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for sup.InFlight() > 0 {
		select {
		case code := <-runDone:
			os.Exit(code)
		case <-shutdownCtx.Done():
			fmt.Println("shutdown timeout, forcing exit")
			cancel()
			os.Exit(<-runDone)
		case <-time.After(500 * time.Millisecond):
			fmt.Printf("waiting for %d in-flight request(s) to complete...\n", sup.InFlight())
		}
	}

	os.Exit(<-runDone)
}
