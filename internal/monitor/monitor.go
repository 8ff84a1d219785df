package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/cycle"
	"github.com/igor-bro/btc-cycle-timer/internal/forecast"
	"github.com/igor-bro/btc-cycle-timer/internal/logger"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
	"github.com/igor-bro/btc-cycle-timer/internal/storage"
)

type Config struct {
	MaxPredictedChangePct float64
	MinAgreement          float64
	StaleAfter            time.Duration
	SignificantChangePct  float64
	SignificantConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MaxPredictedChangePct: 10,
		MinAgreement:          0.7,
		StaleAfter:            7 * 24 * time.Hour,
		SignificantChangePct:  5,
		SignificantConfidence: 0.1,
	}
}

// CycleReport summarizes one monitoring pass for the orchestration loop.
type CycleReport struct {
	At           time.Time
	CurrentPrice float64

	Config     models.CycleConfig
	RolledOver bool

	Phase      models.CyclePhase
	Transition *models.PhaseTransition

	RefreshReason   string
	Previous        *models.ForecastRecord
	Forecast        *models.ForecastRecord
	Significant     bool
	PriceDeltaPct   float64
	ConfidenceDelta float64

	Retrain       *forecast.RetrainResult
	AccuracyMean  float64
	AccuracySigma float64
}

type Monitor struct {
	store      storage.Store
	forecaster *forecast.Forecaster
	prices     forecast.PriceSource
	config     Config

	cycleCfg  models.CycleConfig
	lastPhase models.CyclePhase
	accuracy  AccuracyStats
	scored    map[string]bool
}

func New(store storage.Store, f *forecast.Forecaster, prices forecast.PriceSource, config Config) *Monitor {
	m := &Monitor{
		store:      store,
		forecaster: f,
		prices:     prices,
		config:     config,
		cycleCfg:   cycle.DefaultConfig(),
		scored:     make(map[string]bool),
	}

	if cc, err := store.LoadCycleConfig(); err != nil {
		logger.Warn("Failed to load persisted cycle calendar: %v", err)
	} else if cc != nil {
		m.cycleCfg = *cc
		logger.Info("Loaded cycle calendar version %d", cc.Version)
	}

	if phase, err := store.LoadLastPhase(); err != nil {
		logger.Warn("Failed to load last observed phase: %v", err)
	} else {
		m.lastPhase = phase
	}

	return m
}

// CycleConfig returns the active cycle calendar.
func (m *Monitor) CycleConfig() models.CycleConfig {
	return m.cycleCfg
}

// RunCycle executes one monitoring pass: it rolls the cycle calendar past
// crossed milestones, records phase transitions, refreshes the forecast
// per the update policy, and scores matured forecasts, retraining when
// accuracy degrades. Persistence and accuracy failures are logged, never
// raised; a failed forecast refresh fails the pass.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleReport, error) {
	now := time.Now().UTC()
	report := &CycleReport{At: now}

	if current, err := m.prices.CurrentPrice(ctx); err != nil {
		logger.Warn("Current price unavailable: %v", err)
	} else {
		report.CurrentPrice = current
	}

	m.checkRollover(ctx, now, report)
	report.Config = m.cycleCfg

	phase, transition := cycle.Observe(m.cycleCfg, m.lastPhase, now)
	if phase != m.lastPhase {
		if err := m.store.SaveLastPhase(phase); err != nil {
			logger.Warn("Observed phase not persisted: %v", err)
		}
		m.lastPhase = phase
	}
	report.Phase = phase
	report.Transition = transition
	if transition != nil {
		logger.Info("Cycle phase transition: %s to %s on day %d",
			transition.From, transition.To, transition.DaysSinceBottom)
	}

	prev, err := m.store.LatestForecast()
	if err != nil {
		logger.Warn("Stored forecast unavailable: %v", err)
	}
	if reason, needed := m.refreshReason(prev, now); needed {
		logger.Info("Refreshing forecast: %s", reason)
		rec, err := m.forecaster.Generate(ctx, m.cycleCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh forecast: %w", err)
		}
		report.RefreshReason = reason
		report.Previous = prev
		report.Forecast = rec
		report.PriceDeltaPct, report.ConfidenceDelta, report.Significant = m.compare(prev, rec)
		if report.Significant {
			logger.Info("Forecast moved %.2f%% (confidence %+.2f)", report.PriceDeltaPct, report.ConfidenceDelta)
		}
	}

	res, err := m.forecaster.MaybeRetrain(ctx, m.cycleCfg)
	if err != nil {
		logger.Warn("Accuracy check skipped: %v", err)
		return report, nil
	}
	report.Retrain = &res
	for _, rec := range res.Report.Records {
		if m.scored[rec.ForecastID] {
			continue
		}
		m.scored[rec.ForecastID] = true
		m.accuracy.Update(rec.Accuracy)
	}
	report.AccuracyMean = m.accuracy.Mean
	report.AccuracySigma = m.accuracy.Sigma()
	if res.Triggered {
		logger.Info("Accuracy check: %s (model updated: %v)", res.Reason, res.Updated)
	}

	return report, nil
}

// checkRollover advances the calendar when a projected milestone has
// passed. The rolled version persists as version+1; the previous version
// stays readable.
func (m *Monitor) checkRollover(ctx context.Context, now time.Time, report *CycleReport) {
	if !rolloverDue(m.cycleCfg, now) {
		return
	}
	series, err := m.prices.History(ctx)
	if err != nil {
		logger.Warn("Rollover deferred, price history unavailable: %v", err)
		return
	}
	next, ok := cycle.Rollover(m.cycleCfg, series, now)
	if !ok {
		return
	}
	if err := next.Validate(); err != nil {
		logger.Error("Rolled cycle calendar rejected: %v", err)
		return
	}
	if err := m.store.SaveCycleConfig(next); err != nil {
		logger.Warn("Rolled cycle calendar not persisted: %v", err)
	}
	m.cycleCfg = next
	report.RolledOver = true
	logger.Info("Cycle calendar rolled to version %d (%d peaks, %d bottoms on record)",
		next.Version, len(next.Peaks), len(next.Bottoms))
}

func rolloverDue(cc models.CycleConfig, at time.Time) bool {
	return at.After(cc.ProjectedPeakDate) ||
		at.After(cc.ProjectedBottomDate) ||
		at.After(cc.Halvings[len(cc.Halvings)-1])
}

// refreshReason decides whether the stored forecast still stands.
func (m *Monitor) refreshReason(prev *models.ForecastRecord, now time.Time) (string, bool) {
	switch {
	case prev == nil:
		return "no stored forecast", true
	case math.Abs(prev.ChangePct) > m.config.MaxPredictedChangePct:
		return fmt.Sprintf("predicted change %.1f%% beyond %.0f%%", prev.ChangePct, m.config.MaxPredictedChangePct), true
	case prev.Confidence < m.config.MinAgreement:
		return fmt.Sprintf("model agreement %.2f below %.2f", prev.Confidence, m.config.MinAgreement), true
	case now.Sub(prev.CreatedAt) > m.config.StaleAfter:
		return fmt.Sprintf("forecast age %s beyond %s", now.Sub(prev.CreatedAt).Round(time.Hour), m.config.StaleAfter), true
	}
	return "", false
}

// compare measures the new estimate against the previous one. A first
// forecast always counts as significant.
func (m *Monitor) compare(prev, next *models.ForecastRecord) (priceDeltaPct, confidenceDelta float64, significant bool) {
	if prev == nil {
		return 0, 0, true
	}
	if prev.Price != 0 {
		priceDeltaPct = (next.Price - prev.Price) / prev.Price * 100
	}
	confidenceDelta = next.Confidence - prev.Confidence
	significant = math.Abs(priceDeltaPct) > m.config.SignificantChangePct ||
		math.Abs(confidenceDelta) > m.config.SignificantConfidence
	return priceDeltaPct, confidenceDelta, significant
}
