// cmd/ratesync/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "instantransfer/internal"
)

func main() {
	os.Exit(run())
}

func run() int {
	base := flag.String("base", "", "base currency for the refresh (defaults to DEFAULT_CURRENCY)")
	interval := flag.Duration("interval", 0, "refresh repeatedly at this interval; 0 runs once")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := application.Shutdown(context.Background()); err != nil {
			application.Logger.Error("Application shutdown failed", "error", err)
		}
	}()

	if *base == "" {
		*base = application.Config.Ledger.DefaultCurrency
	}

	if *interval > 0 {
		application.RateRefresher.Run(ctx, *base, *interval)
		application.Logger.Info("Rate sync stopped.")
		return 0
	}

	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := application.RateRefresher.Refresh(refreshCtx, *base); err != nil {
		application.Logger.Error("Rate refresh failed", "base", *base, "error", err)
		return 1
	}
	return 0
}
