// Command insuraflow runs the cleaning → transforming → load pipeline.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	// register all backends with the storage factory.
	_ "insuraflow/internal/storage/all"
)

func main() {
	// A missing .env is normal; a malformed one is worth a line.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env: .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
