package ports

import (
	"context"
	"time"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

// MarketDataProvider is the capability set below: fetch daily OHLCV bars
// for a symbol over a date range. Implementations exist for a Polygon-style
// HTTP API and for a free fallback; both are called only to fill the delta
// between the cache's latest date and today, never to replay history.
type MarketDataProvider interface {
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}
