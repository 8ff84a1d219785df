package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/binance"
	"github.com/igor-bro/btc-cycle-timer/internal/config"
	"github.com/igor-bro/btc-cycle-timer/internal/cycle"
	"github.com/igor-bro/btc-cycle-timer/internal/ensemble"
	"github.com/igor-bro/btc-cycle-timer/internal/forecast"
	"github.com/igor-bro/btc-cycle-timer/internal/logger"
	"github.com/igor-bro/btc-cycle-timer/internal/monitor"
	"github.com/igor-bro/btc-cycle-timer/internal/notify"
	"github.com/igor-bro/btc-cycle-timer/internal/storage"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.NewSQLite(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	historyStart, err := cfg.Binance.HistoryStartDate()
	if err != nil {
		logger.Fatal("Invalid history start date: %v", err)
	}
	prices := binance.NewClient(binance.Config{
		BaseURL:    cfg.Binance.BaseURL,
		Symbol:     cfg.Binance.Symbol,
		Interval:   cfg.Binance.Interval,
		Start:      historyStart,
		Timeout:    cfg.Binance.Timeout,
		MaxRetries: cfg.Binance.MaxRetries,
		RetryDelay: cfg.Binance.RetryDelayBase,
		CacheTTL:   cfg.Binance.CacheTTL,
	})

	ens := ensemble.New()
	if state, err := store.LoadModelState(); err != nil {
		logger.Warn("Failed to load persisted models: %v", err)
	} else if state != nil {
		if err := ens.Restore(state); err != nil {
			logger.Warn("Persisted models not restored: %v", err)
		} else {
			logger.Info("Restored models trained at %s", state.TrainedAt.Format(time.RFC3339))
		}
	}

	forecaster := forecast.New(prices, store, ens)

	monitorConfig := monitor.Config{
		MaxPredictedChangePct: cfg.Monitor.MaxPredictedChangePct,
		MinAgreement:          cfg.Monitor.MinAgreement,
		StaleAfter:            cfg.Monitor.StaleAfter,
		SignificantChangePct:  cfg.Monitor.SignificantChangePct,
		SignificantConfidence: monitor.DefaultConfig().SignificantConfidence,
	}
	mon := monitor.New(store, forecaster, prices, monitorConfig)

	var notifier *notify.Client
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if notifier != nil {
		notifier.ListenForCommands(ctx)
	}

	if cfg.Forecast.TrainOnStart && !ens.Trained() {
		logger.Info("Training ensemble on startup")
		if state, err := forecaster.Train(ctx, mon.CycleConfig()); err != nil {
			logger.Warn("Startup training failed, forecasts degrade to cycle and technical methods: %v", err)
		} else {
			logger.Info("Trained on %d rows (%d features)", state.TrainRows, state.FeatureCount)
		}
	}

	logger.Info("Starting forecast service (interval: %v, significant_change: %.1f%%, stale_after: %v)",
		cfg.Forecast.UpdateInterval,
		cfg.Monitor.SignificantChangePct,
		cfg.Monitor.StaleAfter,
	)

	ticker := time.NewTicker(cfg.Forecast.UpdateInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Forecast cycle failed: %v", err)
			if consecutiveFailures == 1 && notifier != nil {
				if sendErr := notifier.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && notifier != nil {
				if sendErr := notifier.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial forecast cycle")
	handleCycleResult(runForecastCycle(ctx, mon, prices, notifier, true))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled forecast cycle")
			handleCycleResult(runForecastCycle(ctx, mon, prices, notifier, false))
		}
	}
}

// runForecastCycle executes one monitoring pass and dispatches the
// resulting notifications. A status snapshot goes out on startup and on
// every phase transition.
func runForecastCycle(
	ctx context.Context,
	mon *monitor.Monitor,
	prices *binance.Client,
	notifier *notify.Client,
	withStatus bool,
) error {
	startTime := time.Now()
	logger.Info("Starting forecast cycle")

	report, err := mon.RunCycle(ctx)
	if err != nil {
		return err
	}

	if report.RolledOver {
		logger.Info("Cycle calendar advanced to version %d", report.Config.Version)
	}

	if notifier != nil {
		if report.Transition != nil {
			if err := notifier.SendPhaseChange(report.Transition, report.CurrentPrice); err != nil {
				logger.Error("Failed to send phase change notification: %v", err)
			}
		}
		if report.Forecast != nil && report.Significant {
			if err := notifier.SendForecast(report.Forecast); err != nil {
				logger.Error("Failed to send forecast notification: %v", err)
			} else {
				logger.Info("Sent forecast %s (%+.2f%% by %s)",
					report.Forecast.ID, report.Forecast.ChangePct, report.Forecast.TargetDate.Format("2006-01-02"))
			}
		}
		if report.Retrain != nil && report.Retrain.Triggered {
			if err := notifier.SendRetrainReport(*report.Retrain); err != nil {
				logger.Error("Failed to send accuracy report: %v", err)
			}
		}
		if withStatus || report.Transition != nil {
			if err := notifier.SendStatus(statusFor(ctx, report, prices)); err != nil {
				logger.Error("Failed to send status notification: %v", err)
			}
		}
	}

	logger.Info("Forecast cycle completed in %v", time.Since(startTime))
	return nil
}

// statusFor assembles the cycle snapshot for the status message. History
// aggregates are skipped when the price series is unavailable.
func statusFor(ctx context.Context, report *monitor.CycleReport, prices *binance.Client) notify.Status {
	cc := report.Config
	st := notify.Status{
		At:                 report.At,
		Price:              report.CurrentPrice,
		Phase:              report.Phase,
		Timers:             cycle.TimersAt(cc, report.At),
		Stats:              cycle.StatsAt(cc, report.At, report.CurrentPrice),
		ProjectedPeakPrice: cc.ProjectedPeakPrice,
		Future:             cycle.FutureCycles(cc, 2),
	}

	series, err := prices.History(ctx)
	if err != nil {
		logger.Warn("Cycle history stats unavailable: %v", err)
		return st
	}
	if agg, ok := cycle.AggregateHistory(cycle.AnalyzeHistory(cycle.Structure(cc), series)); ok {
		st.History = &agg
	}
	return st
}
