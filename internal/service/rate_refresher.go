// internal/service/rate_refresher.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"instantransfer/internal/rates"
	"instantransfer/internal/repository"
)

// RateRefresher copies the provider's latest rates into the currency catalog.
// The ledger never reads these stored rates; conversions always ask the
// rate client. The catalog copy backs the currency listing.
type RateRefresher struct {
	client  rates.Client
	catalog repository.CurrencyCatalog
	logger  *slog.Logger
}

func NewRateRefresher(client rates.Client, catalog repository.CurrencyCatalog, logger *slog.Logger) *RateRefresher {
	return &RateRefresher{client: client, catalog: catalog, logger: logger}
}

// Refresh pulls rates relative to base and upserts them. It returns the
// number of currencies written.
func (r *RateRefresher) Refresh(ctx context.Context, base string) (int, error) {
	base, err := normalizeCurrency(base)
	if err != nil {
		return 0, fmt.Errorf("refresh rates: %w", err)
	}

	latest, err := r.client.LatestRates(ctx, base)
	if err != nil {
		return 0, fmt.Errorf("refresh rates: failed to fetch %s rates: %w", base, err)
	}

	for code, rate := range latest {
		if !rate.IsPositive() || !currencyCodePattern.MatchString(strings.ToUpper(code)) {
			r.logger.Warn("skipping unusable rate", "base", base, "code", code, "rate", rate)
			delete(latest, code)
		}
	}

	n, err := r.catalog.UpsertRates(ctx, base, latest)
	if err != nil {
		return 0, fmt.Errorf("refresh rates: failed to store rates: %w", err)
	}
	r.logger.Info("exchange rates refreshed", "base", base, "currencies", n)
	return n, nil
}

// Run refreshes immediately and then on every tick until ctx is done.
// Failed refreshes are logged and retried on the next tick.
func (r *RateRefresher) Run(ctx context.Context, base string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx, base); err != nil && ctx.Err() == nil {
			r.logger.Error("rate refresh failed", "base", base, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
