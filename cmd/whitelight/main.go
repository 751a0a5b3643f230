// Command whitelight runs the daily ETF-rotation engine: a live session
// against a configured broker (run), a bar-cache refresh (sync), or a
// historical replay against cached bars (backtest).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lmoretti-dev/whitelight/config"
	"github.com/lmoretti-dev/whitelight/internal/adapters/alerts"
	"github.com/lmoretti-dev/whitelight/internal/adapters/broker"
	"github.com/lmoretti-dev/whitelight/internal/adapters/cache"
	"github.com/lmoretti-dev/whitelight/internal/adapters/marketdata"
	"github.com/lmoretti-dev/whitelight/internal/adapters/secrets"
	"github.com/lmoretti-dev/whitelight/internal/combiner"
	"github.com/lmoretti-dev/whitelight/internal/executor"
	"github.com/lmoretti-dev/whitelight/internal/orchestrator"
	"github.com/lmoretti-dev/whitelight/internal/ports"
	"github.com/lmoretti-dev/whitelight/internal/reconciler"
	"github.com/lmoretti-dev/whitelight/internal/strategy"
	"github.com/lmoretti-dev/whitelight/internal/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(int(runRun(os.Args[2:])))
	case "sync":
		os.Exit(int(runSync(os.Args[2:])))
	case "backtest":
		os.Exit(int(runBacktest(os.Args[2:])))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: whitelight <run|sync|backtest> [flags]")
}

// loadCore is shared by run and sync, which both need
// the full adapter set wired from the same config file.
func loadCore(configPath string) (*config.Config, *orchestrator.Orchestrator, *cache.SQLiteCache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	telemetry.SetupLogging(cfg.Log.Level, cfg.Log.Format)

	secretStore := secrets.NewEnvStore(cfg.Secrets.Prefix)

	barCache, err := cache.Open(cfg.MarketData.CachePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open bar cache: %w", err)
	}

	provider := newProvider(cfg, secretStore)
	alertTransport := newAlertTransport(cfg)
	brokerClient, err := newBrokerClient(cfg, secretStore, alertTransport)
	if err != nil {
		barCache.Close()
		return nil, nil, nil, fmt.Errorf("configure broker: %w", err)
	}

	orch := &orchestrator.Orchestrator{
		MarketData: provider,
		Cache:      barCache,
		Broker:     brokerClient,
		Alerts:     alertTransport,
		Strategies: strategy.All(),
		Allocation: combiner.Params{
			TargetVol:          cfg.Allocation.TargetVol,
			SprintVolThreshold: cfg.Allocation.SprintVolThreshold,
			SprintMaxDays:      cfg.Allocation.SprintMaxDays,
		},
		Reconcile: reconciler.Params{
			MinOrderNotional:   cfg.Allocation.MinOrderNotional,
			RebalanceThreshold: cfg.Allocation.RebalanceThreshold,
		},
		Execution: executor.Params{
			SafetyMargin:   cfg.Execution.SafetyMargin,
			DeadlineBuffer: cfg.Execution.DeadlineBuffer,
		},
	}
	return cfg, orch, barCache, nil
}

func newProvider(cfg *config.Config, secretStore ports.SecretStore) ports.MarketDataProvider {
	if cfg.MarketData.Provider == "stooq" {
		return marketdata.NewStooqClient(cfg.MarketData.BaseURL)
	}
	apiKey, _ := secretStore.Get("POLYGON_API_KEY")
	return marketdata.NewClient(cfg.MarketData.BaseURL, apiKey)
}

func newAlertTransport(cfg *config.Config) ports.AlertTransport {
	if cfg.Alerts.Transport == "none" {
		return alerts.NoOp{}
	}
	return alerts.NewConsole()
}

func newBrokerClient(cfg *config.Config, secretStore ports.SecretStore, alertTransport ports.AlertTransport) (ports.BrokerClient, error) {
	primaryKey, err := secretStore.Get("BROKER_PRIMARY_KEY_ID")
	if err != nil {
		return nil, err
	}
	primarySecret, err := secretStore.Get("BROKER_PRIMARY_SECRET")
	if err != nil {
		return nil, err
	}
	primary := broker.NewRESTClient(cfg.Broker.Primary.BaseURL, primaryKey, primarySecret)

	secondaryKey, keyErr := secretStore.Get("BROKER_SECONDARY_KEY_ID")
	secondarySecret, secretErr := secretStore.Get("BROKER_SECONDARY_SECRET")
	if keyErr != nil || secretErr != nil || cfg.Broker.Secondary.BaseURL == "" {
		return primary, nil
	}
	secondary := broker.NewRESTClient(cfg.Broker.Secondary.BaseURL, secondaryKey, secondarySecret)

	retry := broker.RetryParams{
		MaxAttempts: cfg.Execution.RetryMaxAttempts,
		BaseWait:    cfg.Execution.RetryBase,
		Cap:         cfg.Execution.RetryMaxWait,
	}
	return broker.NewFailoverClient(primary, secondary, alertTransport, retry), nil
}

func runRun(args []string) orchestrator.ExitCode {
	fs := newFlagSet("run")
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	dryRun := fs.Bool("dry-run", false, "log the plan instead of submitting orders")
	marketCloseFlag := fs.String("market-close", "", "session's market close, RFC3339 (defaults to today 16:00 ET)")
	schedule := fs.String("schedule", "", "cron expression (with seconds field) to run on a recurring basis instead of once; e.g. \"0 55 15 * * 1-5\"")
	if err := fs.Parse(args); err != nil {
		return orchestrator.ExitConfigError
	}

	cfg, orch, barCache, err := loadCore(*configPath)
	if err != nil {
		slog.Error("run: failed to initialize", "err", err)
		return orchestrator.ExitConfigError
	}
	defer barCache.Close()

	dryRunEffective := *dryRun || cfg.Execution.DryRun

	if *schedule == "" {
		return runSessionOnce(orch, *marketCloseFlag, dryRunEffective)
	}
	return runSessionOnSchedule(orch, *schedule, dryRunEffective)
}

// runSessionOnce resolves the session's market close and runs exactly one
// RunSession, blocking only until that session completes or its deadline
// passes.
func runSessionOnce(orch *orchestrator.Orchestrator, marketCloseFlag string, dryRun bool) orchestrator.ExitCode {
	marketClose, err := resolveMarketClose(marketCloseFlag)
	if err != nil {
		slog.Error("run: invalid market close", "err", err)
		return orchestrator.ExitConfigError
	}

	deadline := marketClose.Add(-1 * time.Minute)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelDeadline := context.WithDeadline(ctx, deadline)
	defer cancelDeadline()

	result, err := orch.RunSession(ctx, marketClose, dryRun)
	if err != nil {
		slog.Error("run: session failed", "err", err, "exit_code", result.ExitCode)
		return result.ExitCode
	}

	slog.Info("run: session succeeded", "session_id", result.SessionID, "state", result.State, "orders", len(result.Plan))
	return orchestrator.ExitOK
}

// runSessionOnSchedule keeps the process alive and fires one RunSession per
// cron trigger, each against that trigger's own today-16:00-ET market close
// and a fresh deadline-bound context. It runs until SIGINT/SIGTERM, at which
// point it stops the scheduler and returns ExitOK — a session's own failure
// never tears down the scheduler, it's only logged and counted in metrics.
func runSessionOnSchedule(orch *orchestrator.Orchestrator, expr string, dryRun bool) orchestrator.ExitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(expr, func() {
		exitCode := runSessionOnce(orch, "", dryRun)
		if exitCode != orchestrator.ExitOK {
			slog.Error("run: scheduled session did not succeed", "exit_code", exitCode)
		}
	})
	if err != nil {
		slog.Error("run: invalid schedule expression", "err", err, "schedule", expr)
		return orchestrator.ExitConfigError
	}

	slog.Info("run: scheduler started", "schedule", expr)
	c.Start()
	<-ctx.Done()
	slog.Info("run: scheduler stopping")
	<-c.Stop().Done()

	return orchestrator.ExitOK
}

func runSync(args []string) orchestrator.ExitCode {
	fs := newFlagSet("sync")
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return orchestrator.ExitConfigError
	}

	_, orch, barCache, err := loadCore(*configPath)
	if err != nil {
		slog.Error("sync: failed to initialize", "err", err)
		return orchestrator.ExitConfigError
	}
	defer barCache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := orch.Sync(ctx); err != nil {
		slog.Error("sync: failed", "err", err)
		return orchestrator.ExitDataUnavailable
	}

	slog.Info("sync: bar cache up to date")
	return orchestrator.ExitOK
}

func resolveMarketClose(raw string) (time.Time, error) {
	if raw != "" {
		return time.Parse(time.RFC3339, raw)
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, loc), nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}
