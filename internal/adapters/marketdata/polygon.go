// Package marketdata implements the MarketDataProvider against a
// Polygon-style daily-aggregates HTTP API, with token-bucket rate limiting
// and exponential-backoff retries on network errors, 429s, and 5xx
// responses.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
)

const (
	defaultBaseURL = "https://api.polygon.io"

	// Polygon's free tier caps at 5 requests/minute; stay comfortably
	// under that rather than burst into 429s.
	requestsPerSecond = 0.08

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// indexPrefixes maps an unprefixed core symbol to the vendor-specific
// prefix Polygon requires for indices.
var indexPrefixes = map[string]string{
	domain.SymbolNDX: "I:NDX",
}

// Client is an HTTP client for Polygon's daily-aggregates endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewClient builds a Client against baseURL (empty uses the production
// default) authenticated with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

type aggsResponse struct {
	Results []aggBar `json:"results"`
	Status  string   `json:"status"`
}

type aggBar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Ts     int64   `json:"t"` // milliseconds since epoch, UTC
}

// GetDailyBars implements ports.MarketDataProvider.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	vendorSymbol := symbol
	if prefixed, ok := indexPrefixes[symbol]; ok {
		vendorSymbol = prefixed
	}

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000&apiKey=%s",
		c.baseURL, vendorSymbol, start.Format(time.DateOnly), end.Format(time.DateOnly), c.apiKey)

	var resp aggsResponse
	if err := c.getWithRetry(ctx, url, &resp); err != nil {
		return nil, domain.Wrap(domain.KindProviderTransient, "marketdata.GetDailyBars", err)
	}

	bars := make([]domain.Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, domain.Bar{
			Date:   time.UnixMilli(r.Ts).UTC(),
			Open:   money.FromFloat(r.Open),
			High:   money.FromFloat(r.High),
			Low:    money.FromFloat(r.Low),
			Close:  money.FromFloat(r.Close),
			Volume: int64(r.Volume),
		})
	}
	return bars, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("marketdata: rate limited", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	jitter := time.Duration(rand.Int63n(int64(wait) / 4))
	select {
	case <-time.After(wait + jitter):
	case <-ctx.Done():
	}
}
