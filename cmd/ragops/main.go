// Command ragops ingests documents into a vector index and retrieves them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragops/internal/adapters/driving/cli"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load() //nolint:errcheck // optional file

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
