package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// Scenario E — Reconcile skip: a 2% delta is below the 5% rebalance
// threshold even though it exceeds the minimum order notional.
func TestPlan_SkipsBelowRebalanceThreshold(t *testing.T) {
	snapshot := domain.AccountSnapshot{
		Equity: d(100000),
		Cash:   d(10000),
		Positions: map[string]domain.Position{
			domain.SymbolTQQQ: {Symbol: domain.SymbolTQQQ, Quantity: 1800, MarketValue: d(90000)},
			domain.SymbolBIL: {Symbol: domain.SymbolBIL, Quantity: 109, MarketValue: d(9973.5)},
		},
	}
	target := domain.TargetAllocation{WTQQQ: d(0.92), WSQQQ: decimal.Zero, WBIL: d(0.08)}
	closes := Closes{domain.SymbolTQQQ: d(50), domain.SymbolBIL: d(91.5)}

	plan := Plan(DefaultParams(), target, snapshot, closes)
	assert.Empty(t, plan)
}

func TestPlan_SkipsBelowMinOrderNotional(t *testing.T) {
	snapshot := domain.AccountSnapshot{
		Equity: d(7),
		Cash:   d(7),
		Positions: map[string]domain.Position{},
	}
	target := domain.TargetAllocation{WTQQQ: decimal.Zero, WSQQQ: decimal.Zero, WBIL: d(1.0)}
	closes := Closes{domain.SymbolBIL: d(5)}

	plan := Plan(DefaultParams(), target, snapshot, closes)
	assert.Empty(t, plan)
}

func TestPlan_SellsBeforeBuysAndAlphabeticalWithinGroup(t *testing.T) {
	snapshot := domain.AccountSnapshot{
		Equity: d(100000),
		Cash:   d(0),
		Positions: map[string]domain.Position{
			domain.SymbolTQQQ: {Symbol: domain.SymbolTQQQ, Quantity: 2000, MarketValue: d(100000)},
		},
	}
	target := domain.TargetAllocation{WTQQQ: decimal.Zero, WSQQQ: d(0.30), WBIL: d(0.70)}
	closes := Closes{
		domain.SymbolTQQQ: d(50),
		domain.SymbolSQQQ: d(20),
		domain.SymbolBIL:  d(91.5),
	}

	plan := Plan(DefaultParams(), target, snapshot, closes)
	assert.NotEmpty(t, plan)

	sawBuy := false
	for _, o := range plan {
		if o.Side == domain.SideBuy {
			sawBuy = true
		}
		if sawBuy {
			assert.Equal(t, domain.SideBuy, o.Side, "no SELL may appear after a BUY in the plan")
		}
	}

	var sells, buys []string
	for _, o := range plan {
		if o.Side == domain.SideSell {
			sells = append(sells, o.Symbol)
		} else {
			buys = append(buys, o.Symbol)
		}
	}
	assert.IsIncreasing(t, sells)
	assert.IsIncreasing(t, buys)
}

func TestPlan_DeltaComputedAgainstCurrentPosition(t *testing.T) {
	snapshot := domain.AccountSnapshot{
		Equity: d(10000),
		Cash:   d(10000),
		Positions: map[string]domain.Position{},
	}
	target := domain.TargetAllocation{WTQQQ: d(1.0), WSQQQ: decimal.Zero, WBIL: decimal.Zero}
	closes := Closes{domain.SymbolTQQQ: d(50), domain.SymbolBIL: d(91.5)}

	plan := Plan(DefaultParams(), target, snapshot, closes)
	assert.Len(t, plan, 1)
	assert.Equal(t, domain.SymbolTQQQ, plan[0].Symbol)
	assert.Equal(t, domain.SideBuy, plan[0].Side)
	assert.Equal(t, int64(200), plan[0].Quantity)
}

func TestPlan_NoOrdersWhenAlreadyAtTarget(t *testing.T) {
	snapshot := domain.AccountSnapshot{
		Equity: d(100000),
		Cash:   d(0),
		Positions: map[string]domain.Position{
			domain.SymbolTQQQ: {Symbol: domain.SymbolTQQQ, Quantity: 2000, MarketValue: d(100000)},
		},
	}
	target := domain.TargetAllocation{WTQQQ: d(1.0), WSQQQ: decimal.Zero, WBIL: decimal.Zero}
	closes := Closes{domain.SymbolTQQQ: d(50), domain.SymbolBIL: d(91.5)}

	plan := Plan(DefaultParams(), target, snapshot, closes)
	assert.Empty(t, plan)
}
