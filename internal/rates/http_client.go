// internal/rates/http_client.go
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPClient talks to an exchangerate-api style provider:
// GET {baseURL}/{apiKey}/latest/{BASE} -> {"result":"success","conversion_rates":{...}}
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient builds a client whose requests are bounded by timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

func (c *HTTPClient) Quote(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rates, err := c.LatestRates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[strings.ToUpper(to)]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrUnknownPair, from, to)
	}
	return rate, nil
}

func (c *HTTPClient) LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = strings.ToUpper(base)
	url := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, c.apiKey, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	c.logger.Debug("rate provider responded", "base", base, "status", resp.StatusCode, "elapsed", time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	var payload latestResponse
	decodeErr := json.Unmarshal(body, &payload)

	switch {
	case payload.Result == "error" && (payload.ErrorType == "unsupported-code" || payload.ErrorType == "malformed-request"):
		return nil, fmt.Errorf("%w: base %s: %s", ErrUnknownPair, base, payload.ErrorType)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: base %s", ErrUnknownPair, base)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: provider status %d", ErrTransport, resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, decodeErr)
	case payload.Result != "success":
		return nil, fmt.Errorf("%w: provider error %q", ErrTransport, payload.ErrorType)
	}
	return payload.ConversionRates, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
