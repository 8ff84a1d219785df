package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/igor-bro/btc-cycle-timer/internal/logger"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// retrainThreshold is the mean accuracy percent below which the ensemble
// retrains.
const retrainThreshold = 70.0

// AnalyzeAccuracy scores every stored forecast whose target date has a
// realized close on record and appends the aggregate report to the
// accuracy history. Forecasts without a matured close count as pending.
func (f *Forecaster) AnalyzeAccuracy(ctx context.Context) (*models.AccuracyReport, error) {
	forecasts, err := f.store.ListForecasts()
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	series, err := f.prices.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}

	report := buildReport(forecasts, series, time.Now().UTC())
	if err := f.store.AppendAccuracyReport(report); err != nil {
		logger.Warn("Accuracy report not persisted: %v", err)
	}
	return report, nil
}

// RetrainResult reports one accuracy check with its retraining outcome.
type RetrainResult struct {
	Triggered bool
	Updated   bool
	Reason    string
	Report    *models.AccuracyReport
	Metrics   map[string]models.StrategyMetrics
}

// MaybeRetrain analyzes forecast accuracy and retrains the ensemble when
// the mean accuracy over evaluated forecasts is strictly below the
// threshold. A failed retraining keeps the previous models active and is
// reported in the result, never raised.
func (f *Forecaster) MaybeRetrain(ctx context.Context, cc models.CycleConfig) (RetrainResult, error) {
	report, err := f.AnalyzeAccuracy(ctx)
	if err != nil {
		return RetrainResult{}, err
	}

	res := RetrainResult{Report: report}
	if report.Evaluated == 0 {
		res.Reason = "no matured forecasts to evaluate"
		return res, nil
	}
	if report.MeanAccuracy >= retrainThreshold {
		res.Reason = fmt.Sprintf("mean accuracy %.1f%% at or above %.0f%%", report.MeanAccuracy, retrainThreshold)
		return res, nil
	}

	res.Triggered = true
	res.Reason = fmt.Sprintf("mean accuracy %.1f%% below %.0f%%", report.MeanAccuracy, retrainThreshold)
	state, err := f.Train(ctx, cc)
	if err != nil {
		logger.Error("Retraining failed: %v", err)
		res.Reason = fmt.Sprintf("retraining failed: %v", err)
		return res, nil
	}
	res.Updated = true
	res.Metrics = state.Metrics
	return res, nil
}

func buildReport(forecasts []models.ForecastRecord, series []models.PricePoint, now time.Time) *models.AccuracyReport {
	points := make([]models.PricePoint, len(series))
	copy(points, series)
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	report := &models.AccuracyReport{ID: uuid.New().String(), CreatedAt: now}

	var accSum, errSum float64
	methodSum := map[string]float64{}
	methodCount := map[string]int{}

	for _, fc := range forecasts {
		realized, ok := realizedAt(points, fc.TargetDate)
		if !ok {
			report.Pending++
			continue
		}
		rec := scoreForecast(fc, realized)
		report.Records = append(report.Records, rec)
		accSum += rec.Accuracy
		errSum += rec.ErrorPct
		for method, acc := range rec.ByMethod {
			methodSum[method] += acc
			methodCount[method]++
		}
	}

	report.Evaluated = len(report.Records)
	if report.Evaluated > 0 {
		report.MeanAccuracy = accSum / float64(report.Evaluated)
		report.MeanErrorPct = errSum / float64(report.Evaluated)
		report.ByMethod = make(map[string]float64, len(methodSum))
		for method, sum := range methodSum {
			report.ByMethod[method] = sum / float64(methodCount[method])
		}
	}
	return report
}

// realizedAt finds the first close on or after the target date.
func realizedAt(points []models.PricePoint, target time.Time) (models.PricePoint, bool) {
	idx := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(target) })
	if idx == len(points) {
		return models.PricePoint{}, false
	}
	return points[idx], true
}

func scoreForecast(fc models.ForecastRecord, realized models.PricePoint) models.AccuracyRecord {
	rec := models.AccuracyRecord{
		ForecastID:    fc.ID,
		CreatedAt:     fc.CreatedAt,
		TargetDate:    fc.TargetDate,
		RealizedDate:  realized.Date,
		RealizedPrice: realized.Close,
		ForecastPrice: fc.Price,
		ErrorPct:      errorPct(fc.Price, realized.Close),
		Accuracy:      accuracyOf(fc.Price, realized.Close),
	}
	if len(fc.Predictions) > 0 {
		rec.ByMethod = make(map[string]float64, len(fc.Predictions))
		for _, p := range fc.Predictions {
			rec.ByMethod[p.Method] = accuracyOf(p.Price, realized.Close)
		}
	}
	return rec
}

func errorPct(predicted, actual float64) float64 {
	if actual == 0 {
		return 100
	}
	return math.Abs(predicted-actual) / actual * 100
}

// accuracyOf clamps 100 minus the error percent into [0, 100].
func accuracyOf(predicted, actual float64) float64 {
	acc := 100 - errorPct(predicted, actual)
	if acc < 0 {
		return 0
	}
	if acc > 100 {
		return 100
	}
	return acc
}
