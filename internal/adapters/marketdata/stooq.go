package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
)

// StooqClient is the free fallback MarketDataProvider below: Stooq's
// public daily-history CSV endpoint, unauthenticated and unrate-limited by
// contract, used when the primary vendor is unavailable or unconfigured.
type StooqClient struct {
	http    *http.Client
	baseURL string
}

const defaultStooqBaseURL = "https://stooq.com/q/d/l"

// NewStooqClient builds a StooqClient against baseURL (empty uses the
// production default).
func NewStooqClient(baseURL string) *StooqClient {
	if baseURL == "" {
		baseURL = defaultStooqBaseURL
	}
	return &StooqClient{http: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
}

// GetDailyBars implements ports.MarketDataProvider.
func (c *StooqClient) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	url := fmt.Sprintf("%s/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL, stooqSymbol(symbol), start.Format("20060102"), end.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindProviderTransient, "marketdata.StooqClient.GetDailyBars", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.Wrap(domain.KindProviderTransient, "marketdata.StooqClient.GetDailyBars",
			fmt.Errorf("stooq returned %d: %s", resp.StatusCode, string(body)))
	}

	return parseStooqCSV(resp.Body)
}

// stooqSymbol maps a core symbol to Stooq's ticker convention (US equities
// carry a ".us" suffix).
func stooqSymbol(symbol string) string {
	return symbol + ".us"
}

func parseStooqCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	var bars []domain.Bar
	for _, row := range records[1:] { // skip header: Date,Open,High,Low,Close,Volume
		if len(row) < 6 {
			continue
		}
		date, err := time.Parse(time.DateOnly, row[0])
		if err != nil {
			continue
		}
		open, err1 := money.FromString(row[1])
		high, err2 := money.FromString(row[2])
		low, err3 := money.FromString(row[3])
		closePrice, err4 := money.FromString(row[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		volume, _ := strconv.ParseInt(row[5], 10, 64)
		bars = append(bars, domain.Bar{Date: date, Open: open, High: high, Low: low, Close: closePrice, Volume: volume})
	}
	return bars, nil
}
