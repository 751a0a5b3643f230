// Package reconciler turns a TargetAllocation and the current
// AccountSnapshot into a concrete, ordered list of whole-share orders.
package reconciler

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
)

const (
	// defaultMinOrderNotional is the dollar floor below which a delta is
	// not worth trading, absent an AllocationConfig override.
	defaultMinOrderNotional = 10

	// defaultRebalanceThreshold is the fraction of equity below which a
	// delta is dropped as noise, absent an AllocationConfig override.
	defaultRebalanceThreshold = 0.05
)

// Params carries the order-sizing thresholds out of config.AllocationConfig
// so a deployment can retune the engine without a code change.
type Params struct {
	MinOrderNotional   float64
	RebalanceThreshold float64
}

// DefaultParams returns the thresholds config.setDefaults falls back to.
func DefaultParams() Params {
	return Params{
		MinOrderNotional:   defaultMinOrderNotional,
		RebalanceThreshold: defaultRebalanceThreshold,
	}
}

// Closes maps a traded symbol to its latest close price.
type Closes map[string]decimal.Decimal

// Plan reconciles target against snapshot using closes, returning the
// ordered list of orders to submit: every SELL first, then every BUY, each
// group sorted by symbol.
func Plan(params Params, target domain.TargetAllocation, snapshot domain.AccountSnapshot, closes Closes) []domain.PlannedOrder {
	symbols := []string{domain.SymbolTQQQ, domain.SymbolSQQQ, domain.SymbolBIL}

	var sells, buys []domain.PlannedOrder
	for _, sym := range symbols {
		price, ok := closes[sym]
		if !ok || price.IsZero() {
			continue
		}
		targetNotional := target.Weight(sym).Mul(snapshot.Equity)
		targetShares := money.FloorShares(targetNotional, price)
		currentShares := snapshot.QuantityOf(sym)
		delta := targetShares - currentShares
		if delta == 0 {
			continue
		}

		deltaNotional := price.Mul(decimal.NewFromInt(abs64(delta)))
		if deltaNotional.LessThan(decimal.NewFromFloat(params.MinOrderNotional)) {
			continue
		}
		if snapshot.Equity.IsPositive() {
			threshold := decimal.NewFromFloat(params.RebalanceThreshold).Mul(snapshot.Equity)
			if deltaNotional.LessThan(threshold) {
				continue
			}
		}

		order := domain.PlannedOrder{
			Symbol:            sym,
			EstimatedPrice:    price,
			EstimatedNotional: deltaNotional,
		}
		if delta < 0 {
			order.Side = domain.SideSell
			order.Quantity = abs64(delta)
			sells = append(sells, order)
		} else {
			order.Side = domain.SideBuy
			order.Quantity = delta
			buys = append(buys, order)
		}
	}

	sortBySymbol(sells)
	sortBySymbol(buys)

	plan := make([]domain.PlannedOrder, 0, len(sells)+len(buys))
	plan = append(plan, sells...)
	plan = append(plan, buys...)
	return plan
}

func sortBySymbol(orders []domain.PlannedOrder) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].Symbol < orders[j].Symbol })
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
