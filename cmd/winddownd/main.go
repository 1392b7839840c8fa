// Package main starts the winddown HTTP service.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/winddownhq/winddown/internal/app/runtime"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	cfg, err := runtime.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := runtime.NewApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Shutting down...")
	if err := application.Shutdown(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Service stopped")
}
