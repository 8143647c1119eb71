// internal/rates/client.go
package rates

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Failure kinds a Client reports. Implementations wrap the cause with %w.
var (
	ErrTimeout     = errors.New("rate lookup timed out")
	ErrUnknownPair = errors.New("unknown currency pair")
	ErrTransport   = errors.New("rate provider unreachable")
)

// Client quotes exchange rates. Quote returns how many units of `to` one
// unit of `from` buys.
type Client interface {
	Quote(ctx context.Context, from, to string) (decimal.Decimal, error)
	LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// IsRetryable reports whether a failed lookup is worth one more attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport)
}
