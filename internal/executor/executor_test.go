package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/ports"
)

// mockBroker is a hand-written ports.BrokerClient stub, scripted per test.
// By default SubmitMarketOrder seeds a fully-FILLED fill for the order it
// returns; tests that need a partial fill override it with setFill before
// the poll loop observes it.
type mockBroker struct {
	account      domain.AccountSnapshot
	accountCalls int

	fillsByID map[string]domain.Fill
	submitErr error
}

func newMockBroker() *mockBroker {
	return &mockBroker{fillsByID: make(map[string]domain.Fill)}
}

func (m *mockBroker) GetAccount(context.Context) (domain.AccountSnapshot, error) {
	m.accountCalls++
	return m.account, nil
}

func (m *mockBroker) SubmitMarketOrder(_ context.Context, symbol string, side domain.Side, quantity int64, _ string) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	id := symbol + "-" + string(side) + "-order"
	if _, overridden := m.fillsByID[id]; !overridden {
		m.fillsByID[id] = domain.Fill{
			OrderID: id, Symbol: symbol, Side: side,
			RequestedQty: quantity, FilledQuantity: quantity,
			AvgFillPrice: decimal.NewFromInt(1), Status: domain.OrderStatusFilled,
		}
	}
	return id, nil
}

func (m *mockBroker) PollOrder(_ context.Context, orderID string) (domain.Fill, error) {
	return m.fillsByID[orderID], nil
}

func (m *mockBroker) CancelOrder(context.Context, string) (bool, error) { return true, nil }

func (m *mockBroker) IsMarketOpen(context.Context) (bool, error) { return true, nil }

// setFill pre-seeds the fill that SubmitMarketOrder/PollOrder will report
// for the order about to be submitted for (symbol, side).
func (m *mockBroker) setFill(symbol string, side domain.Side, fill domain.Fill) {
	id := symbol + "-" + string(side) + "-order"
	fill.OrderID = id
	m.fillsByID[id] = fill
}

var _ ports.BrokerClient = (*mockBroker)(nil)

func TestExecute_SellsBeforeBuysAndReadsCashBetween(t *testing.T) {
	broker := newMockBroker()
	broker.account = domain.AccountSnapshot{
		Cash:   decimal.NewFromInt(1000),
		Equity: decimal.NewFromInt(10000),
	}

	plan := []domain.PlannedOrder{
		{Symbol: domain.SymbolSQQQ, Side: domain.SideSell, Quantity: 10, EstimatedPrice: decimal.NewFromInt(20)},
		{Symbol: domain.SymbolTQQQ, Side: domain.SideBuy, Quantity: 5, EstimatedPrice: decimal.NewFromInt(50)},
	}

	exec := New(broker, nil, "session-1", false, DefaultParams())
	results, err := exec.Execute(context.Background(), plan, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.SideSell, results[0].Order.Side)
	assert.Equal(t, domain.SideBuy, results[1].Order.Side)
	assert.Equal(t, 1, broker.accountCalls, "cash must be re-read exactly once, between sells and buys")
}

func TestExecute_ProportionalReductionWhenCashInsufficient(t *testing.T) {
	broker := newMockBroker()
	// After sells, only $100 cash is available; two buys request $60 + $60 = $120.
	broker.account = domain.AccountSnapshot{
		Cash:   decimal.NewFromInt(100),
		Equity: decimal.NewFromInt(10000),
	}

	plan := []domain.PlannedOrder{
		{Symbol: domain.SymbolTQQQ, Side: domain.SideBuy, Quantity: 6, EstimatedPrice: decimal.NewFromInt(10)},
		{Symbol: domain.SymbolBIL, Side: domain.SideBuy, Quantity: 6, EstimatedPrice: decimal.NewFromInt(10)},
	}

	exec := New(broker, nil, "session-2", false, DefaultParams())
	results, err := exec.Execute(context.Background(), plan, time.Now().Add(time.Hour))
	require.NoError(t, err)

	var totalQty int64
	for _, r := range results {
		totalQty += r.Order.Quantity
	}
	// available = 100 * (1 - 0.01) = 99; ratio = 99/120 = 0.825; floor(6*0.825) = 4 each.
	assert.LessOrEqual(t, totalQty, int64(10))
	for _, r := range results {
		assert.Less(t, r.Order.Quantity, int64(6))
	}
}

func TestExecute_PartialFillReportedAsSuch(t *testing.T) {
	broker := newMockBroker()
	broker.account = domain.AccountSnapshot{Cash: decimal.NewFromInt(1000), Equity: decimal.NewFromInt(10000)}
	broker.setFill(domain.SymbolSQQQ, domain.SideSell, domain.Fill{
		Symbol: domain.SymbolSQQQ, Side: domain.SideSell,
		RequestedQty: 100, FilledQuantity: 60, AvgFillPrice: decimal.NewFromInt(20),
		Status: domain.OrderStatusPartial,
	})

	plan := []domain.PlannedOrder{
		{Symbol: domain.SymbolSQQQ, Side: domain.SideSell, Quantity: 100, EstimatedPrice: decimal.NewFromInt(20)},
	}

	exec := New(broker, nil, "session-3", false, DefaultParams())
	results, err := exec.Execute(context.Background(), plan, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.OrderStatusPartial, results[0].Fill.Status)
	assert.Equal(t, int64(40), results[0].Fill.Remaining())
}

func TestExecute_DryRunNeverSubmits(t *testing.T) {
	broker := newMockBroker()
	plan := []domain.PlannedOrder{
		{Symbol: domain.SymbolTQQQ, Side: domain.SideBuy, Quantity: 5, EstimatedPrice: decimal.NewFromInt(10)},
	}
	exec := New(broker, nil, "session-4", true, DefaultParams())
	results, err := exec.Execute(context.Background(), plan, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, broker.accountCalls)
}

func TestExecute_EmptyPlanIsNoOp(t *testing.T) {
	broker := newMockBroker()
	exec := New(broker, nil, "session-5", false, DefaultParams())
	results, err := exec.Execute(context.Background(), nil, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, results)
}
