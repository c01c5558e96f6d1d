package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	container, err := GetContainer()
	if err != nil {
		log.Fatalf("failed to initialize worker: %v", err)
	}

	logger := container.Logger
	logger.Info("Worker service initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.WorkerHandler.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker service stopped")
}
