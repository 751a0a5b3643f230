package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
)

func TestSQLiteCache_PutAndGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{Date: day, Open: money.FromFloat(100), High: money.FromFloat(101), Low: money.FromFloat(99), Close: money.FromFloat(100.5), Volume: 1000},
	}

	require.NoError(t, c.PutBars(ctx, "TQQQ", bars))

	got, err := c.GetBars(ctx, "TQQQ", day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got.Bars, 1)
	assert.True(t, got.Bars[0].Close.Equal(money.FromFloat(100.5)))
}

func TestSQLiteCache_LatestDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.LatestDate(ctx, "TQQQ")
	require.NoError(t, err)
	assert.False(t, ok)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.PutBars(ctx, "TQQQ", []domain.Bar{
		{Date: day, Open: money.FromFloat(1), High: money.FromFloat(1), Low: money.FromFloat(1), Close: money.FromFloat(1)},
	}))

	latest, ok, err := c.LatestDate(ctx, "TQQQ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(day))
}

func TestSQLiteCache_RecordDecisionPersistsCompositeAndSignals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	signals := []domain.Signal{
		{StrategyName: "S1_PrimaryTrend", RawScore: 1.0, Strength: domain.StrongBull, Weight: 0.25},
		{StrategyName: "S2_Intermediate", RawScore: -0.5, Strength: domain.StrongBear, Weight: 0.15},
	}

	require.NoError(t, c.RecordDecision(ctx, "session-1", day, 0.175, signals))

	var gotDate string
	var gotComposite float64
	require.NoError(t, c.db.QueryRowContext(ctx,
		`SELECT date, composite_score FROM decisions WHERE session_id = ?`, "session-1",
	).Scan(&gotDate, &gotComposite))
	assert.Equal(t, "2024-05-01", gotDate)
	assert.InDelta(t, 0.175, gotComposite, 1e-9)

	rows, err := c.db.QueryContext(ctx,
		`SELECT strategy_name, raw_score, strength FROM decision_signals WHERE session_id = ? ORDER BY strategy_name`, "session-1",
	)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, strength string
		var score float64
		require.NoError(t, rows.Scan(&name, &score, &strength))
		names = append(names, name)
	}
	assert.Equal(t, []string{"S1_PrimaryTrend", "S2_Intermediate"}, names)
}

func TestOpen_SecondOpenOnSamePathFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	first, err := Open(path)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(path)
	assert.Error(t, err)
}
