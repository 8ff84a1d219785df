// Package forecast blends the model ensemble, the cycle-ratio projector,
// and the technical analyzer into persisted price forecasts, and scores
// past forecasts once their target dates mature.
package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/igor-bro/btc-cycle-timer/internal/cycle"
	"github.com/igor-bro/btc-cycle-timer/internal/ensemble"
	"github.com/igor-bro/btc-cycle-timer/internal/features"
	"github.com/igor-bro/btc-cycle-timer/internal/logger"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
	"github.com/igor-bro/btc-cycle-timer/internal/storage"
	"github.com/igor-bro/btc-cycle-timer/internal/technical"
)

// Method names as recorded on predictions and weights.
const (
	MethodML        = "ml"
	MethodCycle     = "cycle"
	MethodTechnical = "technical"
)

// methodWeights is the base blend; when a method is unavailable the
// remaining weights renormalize to sum to 1.
var methodWeights = map[string]float64{
	MethodML:        0.5,
	MethodCycle:     0.3,
	MethodTechnical: 0.2,
}

// NoForecastError reports that every prediction method failed.
type NoForecastError struct {
	Reasons []string
}

func (e *NoForecastError) Error() string {
	return "no forecast method produced an estimate: " + strings.Join(e.Reasons, "; ")
}

// PriceSource supplies the daily price history and the current spot price.
type PriceSource interface {
	History(ctx context.Context) ([]models.PricePoint, error)
	CurrentPrice(ctx context.Context) (float64, error)
}

// Forecaster produces combined forecasts and keeps them persisted.
type Forecaster struct {
	prices PriceSource
	store  storage.Store
	ens    *ensemble.Ensemble
}

func New(prices PriceSource, store storage.Store, ens *ensemble.Ensemble) *Forecaster {
	return &Forecaster{prices: prices, store: store, ens: ens}
}

// Train rebuilds features from the full history, fits the ensemble, and
// persists the exported model state. The active models swap only when
// training succeeds.
func (f *Forecaster) Train(ctx context.Context, cc models.CycleConfig) (*models.ModelState, error) {
	series, err := f.prices.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	rows, err := features.NewBuilder(cycle.Structure(cc).Current).Build(series)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	if _, err := f.ens.Train(rows); err != nil {
		return nil, fmt.Errorf("failed to train ensemble: %w", err)
	}
	state, err := f.ens.Export()
	if err != nil {
		return nil, fmt.Errorf("failed to export model state: %w", err)
	}
	if err := f.store.SaveModelState(state); err != nil {
		logger.Warn("Model state not persisted: %v", err)
	}
	return state, nil
}

// Generate produces one combined forecast, appends it to the history, and
// returns it. Methods that cannot produce an estimate are dropped and the
// remaining weights renormalized; a persistence failure is logged, never
// raised.
func (f *Forecaster) Generate(ctx context.Context, cc models.CycleConfig) (*models.ForecastRecord, error) {
	series, err := f.prices.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	current, err := f.prices.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current price: %w", err)
	}

	now := time.Now().UTC()
	st := cycle.Structure(cc)

	var (
		predictions []models.Prediction
		reasons     []string
	)

	if rows, err := features.NewBuilder(st.Current).Build(series); err != nil {
		reasons = append(reasons, fmt.Sprintf("ml: %v", err))
	} else if res, err := f.ens.Predict(rows[len(rows)-1]); err != nil {
		reasons = append(reasons, fmt.Sprintf("ml: %v", err))
	} else {
		predictions = append(predictions, models.Prediction{
			Method:     MethodML,
			Price:      res.Estimate,
			ChangePct:  pctOf(current, res.Estimate),
			Confidence: res.Agreement,
			Components: res.PerStrategy,
		})
	}

	if pred, ok := cycle.PredictFromHistory(st, series, current); ok {
		predictions = append(predictions, models.Prediction{
			Method:     MethodCycle,
			Price:      pred.Price,
			ChangePct:  pctOf(current, pred.Price),
			Confidence: pred.Confidence,
		})
	} else {
		reasons = append(reasons, "cycle: no completed cycle has usable price data")
	}

	if res, err := technical.Analyze(series); err != nil {
		reasons = append(reasons, fmt.Sprintf("technical: %v", err))
	} else {
		predictions = append(predictions, models.Prediction{
			Method:     MethodTechnical,
			Price:      res.Price,
			ChangePct:  res.ChangePct,
			Confidence: res.Confidence,
		})
	}

	if len(predictions) == 0 {
		return nil, &NoForecastError{Reasons: reasons}
	}
	for _, r := range reasons {
		logger.Warn("Forecast method unavailable: %s", r)
	}

	weights := renormalize(predictions)
	price, confidence := combineEstimate(predictions, weights)

	rec := &models.ForecastRecord{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		TargetDate:   now.AddDate(0, 0, features.Horizon),
		CurrentPrice: current,
		Price:        price,
		ChangePct:    pctOf(current, price),
		Confidence:   confidence,
		Phase:        cycle.Classify(cc, now),
		Predictions:  predictions,
		Weights:      weights,
	}
	if err := f.store.AppendForecast(rec); err != nil {
		logger.Warn("Forecast not persisted: %v", err)
	}
	return rec, nil
}

// combineEstimate blends the predictions by their normalized weights;
// confidence is the mean over the contributing methods.
func combineEstimate(predictions []models.Prediction, weights map[string]float64) (price, confidence float64) {
	for _, p := range predictions {
		price += weights[p.Method] * p.Price
		confidence += p.Confidence
	}
	confidence /= float64(len(predictions))
	return price, confidence
}

// renormalize scales the base weights of the available methods to sum to 1.
func renormalize(predictions []models.Prediction) map[string]float64 {
	total := 0.0
	for _, p := range predictions {
		total += methodWeights[p.Method]
	}
	weights := make(map[string]float64, len(predictions))
	for _, p := range predictions {
		weights[p.Method] = methodWeights[p.Method] / total
	}
	return weights
}

func pctOf(current, price float64) float64 {
	if current == 0 {
		return 0
	}
	return (price - current) / current * 100
}
