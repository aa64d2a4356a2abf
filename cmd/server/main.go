package main

// Package main is the entry point for the batchlens-ai server application.
//
// Responsibilities:
//   - Load and validate configuration from YAML, environment variables
//   - Initialize the LLM adapter for the configured provider
//   - Open the job artifact store and the SQLite analysis history
//   - Start the REST API server on port 8082 for job diagnosis requests
//   - Start the WebSocket handler for real-time analysis streaming
//   - Register and serve health check and Prometheus metrics endpoints
//   - Implement graceful shutdown with context cancellation
//
// Architecture Flow:
//   1. POST /api/v1/analyses → Analysis Engine starts a diagnosis run
//   2. Engine seeds evidence from job artifacts, then iterates: prompt the
//      LLM, extract reasoning steps, fetch more evidence when asked
//   3. Final result (problem type, confidence, solution) is persisted to
//      SQLite and streamed over WebSocket
//
// Graceful Shutdown:
//   - Cancels in-flight analyses
//   - Closes the HTTP listener
//   - Closes the SQLite store
//   - Finalizes audit logs

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/batchlens/batchlens-ai/internal/config"
	"github.com/batchlens/batchlens-ai/internal/server"
)

func main() {
	configPath := flag.String("config", "/etc/batchlens/config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx := context.Background()

	// Load configuration from file, environment and defaults
	mgr, err := config.NewConfigManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create configuration manager: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Validate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create server with all components wired together
	srv, err := server.NewServer(mgr.Get(ctx))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Start server (HTTP, WebSocket, metrics)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal (Ctrl+C or SIGTERM)
	<-sigChan
	fmt.Println("\nReceived shutdown signal...")

	// Stop server gracefully
	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Shutdown complete")
}
