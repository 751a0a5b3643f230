package ports

import (
	"context"
	"time"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

// BarCache is the read-through, file-backed bar store: the source of
// truth for history in normal operation. Providers are consulted only to
// fill the delta between the cache's latest date and today. It also
// persists each session's composite score and per-strategy Signal
// breakdown purely for downstream research/telemetry consumption; nothing
// written through RecordDecision is ever read back into the decision path.
type BarCache interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) (domain.History, error)
	PutBars(ctx context.Context, symbol string, bars []domain.Bar) error
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)
	RecordDecision(ctx context.Context, sessionID string, date time.Time, composite float64, signals []domain.Signal) error
	Close() error
}
