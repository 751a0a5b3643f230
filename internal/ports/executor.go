package ports

import (
	"context"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

// BrokerClient is the capability set. Two implementations are
// wired at startup (primary + optional secondary) with identical
// semantics; broker.FailoverClient, itself a BrokerClient, selects between
// them on connectivity failure.
type BrokerClient interface {
	GetAccount(ctx context.Context) (domain.AccountSnapshot, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity int64, clientOrderID string) (string, error)
	PollOrder(ctx context.Context, orderID string) (domain.Fill, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}
