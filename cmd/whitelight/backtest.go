package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/config"
	"github.com/lmoretti-dev/whitelight/internal/adapters/cache"
	"github.com/lmoretti-dev/whitelight/internal/backtest"
	"github.com/lmoretti-dev/whitelight/internal/combiner"
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/orchestrator"
	"github.com/lmoretti-dev/whitelight/internal/reconciler"
	"github.com/lmoretti-dev/whitelight/internal/strategy"
	"github.com/lmoretti-dev/whitelight/internal/telemetry"
)

func runBacktest(args []string) orchestrator.ExitCode {
	fs := newFlagSet("backtest")
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	startFlag := fs.String("start", "", "replay start date, YYYY-MM-DD")
	endFlag := fs.String("end", "", "replay end date, YYYY-MM-DD (defaults to today)")
	capitalFlag := fs.Float64("capital", 100000, "initial capital")
	bilYieldFlag := fs.Float64("bil-yield", 0.03, "annualized BIL yield used to accrue price on days with no BIL bar")
	if err := fs.Parse(args); err != nil {
		return orchestrator.ExitConfigError
	}
	if *startFlag == "" {
		fmt.Fprintln(os.Stderr, "backtest: -start is required")
		return orchestrator.ExitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("backtest: failed to load config", "err", err)
		return orchestrator.ExitConfigError
	}
	telemetry.SetupLogging(cfg.Log.Level, cfg.Log.Format)

	start, err := time.Parse(time.DateOnly, *startFlag)
	if err != nil {
		slog.Error("backtest: invalid -start", "err", err)
		return orchestrator.ExitConfigError
	}
	end := time.Now().UTC()
	if *endFlag != "" {
		end, err = time.Parse(time.DateOnly, *endFlag)
		if err != nil {
			slog.Error("backtest: invalid -end", "err", err)
			return orchestrator.ExitConfigError
		}
	}

	barCache, err := cache.Open(cfg.MarketData.CachePath)
	if err != nil {
		slog.Error("backtest: failed to open bar cache", "err", err)
		return orchestrator.ExitDataUnavailable
	}
	defer barCache.Close()

	histories, err := loadHistories(barCache, start, end)
	if err != nil {
		slog.Error("backtest: failed to load histories", "err", err)
		return orchestrator.ExitDataUnavailable
	}

	result, err := backtest.Run(histories, strategy.All(), backtest.Config{
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromFloat(*capitalFlag),
		BILAnnualYield: decimal.NewFromFloat(*bilYieldFlag),
		Allocation: combiner.Params{
			TargetVol:          cfg.Allocation.TargetVol,
			SprintVolThreshold: cfg.Allocation.SprintVolThreshold,
			SprintMaxDays:      cfg.Allocation.SprintMaxDays,
		},
		Reconcile: reconciler.Params{
			MinOrderNotional:   cfg.Allocation.MinOrderNotional,
			RebalanceThreshold: cfg.Allocation.RebalanceThreshold,
		},
	})
	if err != nil {
		slog.Error("backtest: replay failed", "err", err)
		return orchestrator.ExitDataUnavailable
	}

	printBacktestSummary(result)
	return orchestrator.ExitOK
}

func loadHistories(barCache *cache.SQLiteCache, start, end time.Time) (backtest.Histories, error) {
	ctx := context.Background()
	ndx, err := barCache.GetBars(ctx, domain.SymbolNDX, start.AddDate(-2, 0, 0), end)
	if err != nil {
		return backtest.Histories{}, fmt.Errorf("load NDX: %w", err)
	}
	tqqq, err := barCache.GetBars(ctx, domain.SymbolTQQQ, start.AddDate(-2, 0, 0), end)
	if err != nil {
		return backtest.Histories{}, fmt.Errorf("load TQQQ: %w", err)
	}
	sqqq, err := barCache.GetBars(ctx, domain.SymbolSQQQ, start.AddDate(-2, 0, 0), end)
	if err != nil {
		return backtest.Histories{}, fmt.Errorf("load SQQQ: %w", err)
	}
	bil, err := barCache.GetBars(ctx, domain.SymbolBIL, start.AddDate(-2, 0, 0), end)
	if err != nil {
		return backtest.Histories{}, fmt.Errorf("load BIL: %w", err)
	}
	return backtest.Histories{NDX: ndx, TQQQ: tqqq, SQQQ: sqqq, BIL: bil}, nil
}

func printBacktestSummary(result backtest.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Total Return", fmt.Sprintf("%.2f%%", result.Metrics.TotalReturn*100))
	table.Append("Annualized Return", fmt.Sprintf("%.2f%%", result.Metrics.AnnualReturn*100))
	table.Append("Max Drawdown", fmt.Sprintf("%.2f%%", result.Metrics.MaxDrawdown*100))
	table.Append("Sharpe", fmt.Sprintf("%.3f", result.Metrics.SharpeRatio))
	table.Append("Sortino", fmt.Sprintf("%.3f", result.Metrics.SortinoRatio))
	table.Append("Calmar", fmt.Sprintf("%.3f", result.Metrics.CalmarRatio))
	table.Append("Win Rate", fmt.Sprintf("%.2f%%", result.Metrics.WinRate*100))
	table.Append("Profit Factor", fmt.Sprintf("%.3f", result.Metrics.ProfitFactor))
	table.Append("Trades", fmt.Sprintf("%d", result.Metrics.TotalTrades))
	table.Append("Avg Trade Duration (days)", fmt.Sprintf("%.1f", result.Metrics.AvgTradeDuration))
	table.Render()

	slog.Info("backtest complete", "snapshots", len(result.Snapshots), "trades", len(result.Trades))
}
