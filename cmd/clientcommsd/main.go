package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"clientcomms/internal/app"
	"clientcomms/internal/config"
	"clientcomms/internal/mcp"
	"clientcomms/internal/observability"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	cfg, err := config.Load(os.Getenv("CC_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		runServe(ctx, cfg)
	case "worker":
		runWorker(ctx, cfg)
	case "mcp-stdio":
		runStdio(ctx, cfg)
	default:
		usage()
	}
}

func runServe(ctx context.Context, cfg config.Config) {
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	appInstance, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	if err := appInstance.Serve(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runWorker(ctx context.Context, cfg config.Config) {
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	appInstance, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	if err := appInstance.RunWorker(ctx, cfg.Worker.Concurrency); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

func runStdio(ctx context.Context, cfg config.Config) {
	// stdout carries protocol frames, so logs go to stderr.
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	appInstance, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()
	if err := mcp.RunStdio(ctx, appInstance.MCP); err != nil {
		log.Fatalf("stdio error: %v", err)
	}
}

func usage() {
	fmt.Println("Usage: clientcommsd <serve|worker|mcp-stdio>")
}
