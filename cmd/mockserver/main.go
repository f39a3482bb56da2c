// Package main provides the llmdrill-mockserver CLI binary: an in-process
// generation-API double for exercising the mock protocol and local testing
// without a real inference server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/llmdrill/internal/mockserver"
)

func main() {
	addr := flag.String("addr", ":3000", "HTTP server address")
	msPerOutputToken := flag.Float64("ms-per-output-token", 20, "simulated decode latency per output token")
	firstTokenMs := flag.Float64("first-token-ms", 80, "simulated prefill/queueing latency")
	failureRate := flag.Float64("failure-rate", 0, "fraction of requests (0..1) to fail with 503")
	flag.Parse()

	config := mockserver.DefaultConfig()
	config.Addr = *addr
	config.Behavior = mockserver.BehaviorProfile{
		MsPerOutputToken: *msPerOutputToken,
		FirstTokenMs:     *firstTokenMs,
		FailureRate:      *failureRate,
	}

	server := mockserver.New(config)

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock generation server listening on %s\n", server.Addr())
	fmt.Printf("Generation endpoint: %s\n", server.URL())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Stop(ctx)
	fmt.Println("Mock server stopped")
}
