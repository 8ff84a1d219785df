package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Prediction is a single method's price estimate over the forecast horizon.
// Components carries per-strategy estimates when the method is itself an
// ensemble.
type Prediction struct {
	Method     string             `json:"method"`
	Price      float64            `json:"price"`
	ChangePct  float64            `json:"change_pct"`
	Confidence float64            `json:"confidence"`
	Components map[string]float64 `json:"components,omitempty"`
}

// ForecastRecord is one immutable forecast as it was issued.
type ForecastRecord struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	TargetDate   time.Time          `json:"target_date"`
	CurrentPrice float64            `json:"current_price"`
	Price        float64            `json:"price"`
	ChangePct    float64            `json:"change_pct"`
	Confidence   float64            `json:"confidence"`
	Phase        CyclePhase         `json:"phase"`
	Predictions  []Prediction       `json:"predictions"`
	Weights      map[string]float64 `json:"weights"`
}

// Validate checks if the forecast record is complete
func (f *ForecastRecord) Validate() error {
	if f.ID == "" {
		return errors.New("forecast ID is empty")
	}
	if f.CreatedAt.IsZero() {
		return errors.New("forecast creation time is zero")
	}
	if !f.TargetDate.After(f.CreatedAt) {
		return errors.New("forecast target date is not after creation")
	}
	if f.CurrentPrice <= 0 {
		return errors.New("forecast current price is not positive")
	}
	if f.Price <= 0 {
		return errors.New("forecast price is not positive")
	}
	if len(f.Predictions) == 0 {
		return errors.New("forecast has no contributing predictions")
	}
	return nil
}

// AccuracyRecord scores one matured forecast against the realized close.
type AccuracyRecord struct {
	ForecastID    string             `json:"forecast_id"`
	CreatedAt     time.Time          `json:"created_at"`
	TargetDate    time.Time          `json:"target_date"`
	RealizedDate  time.Time          `json:"realized_date"`
	RealizedPrice float64            `json:"realized_price"`
	ForecastPrice float64            `json:"forecast_price"`
	ErrorPct      float64            `json:"error_pct"`
	Accuracy      float64            `json:"accuracy"`
	ByMethod      map[string]float64 `json:"by_method,omitempty"`
}

// AccuracyReport aggregates accuracy over every matured forecast at one
// point in time.
type AccuracyReport struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	Evaluated    int                `json:"evaluated"`
	Pending      int                `json:"pending"`
	MeanAccuracy float64            `json:"mean_accuracy"`
	MeanErrorPct float64            `json:"mean_error_pct"`
	ByMethod     map[string]float64 `json:"by_method,omitempty"`
	Records      []AccuracyRecord   `json:"records,omitempty"`
}

// StrategyMetrics holds train and test regression metrics for one
// ensemble strategy.
type StrategyMetrics struct {
	TrainMAE  float64 `json:"train_mae"`
	TestMAE   float64 `json:"test_mae"`
	TrainRMSE float64 `json:"train_rmse"`
	TestRMSE  float64 `json:"test_rmse"`
	TrainR2   float64 `json:"train_r2"`
	TestR2    float64 `json:"test_r2"`
}

// ModelState is the persisted snapshot of a trained ensemble. Payload is
// the opaque strategy parameter blob owned by the ensemble package.
type ModelState struct {
	TrainedAt    time.Time                  `json:"trained_at"`
	FeatureCount int                        `json:"feature_count"`
	TrainRows    int                        `json:"train_rows"`
	TestRows     int                        `json:"test_rows"`
	Metrics      map[string]StrategyMetrics `json:"metrics"`
	Payload      json.RawMessage            `json:"payload"`
}

// Validate checks if the model state can be restored
func (m *ModelState) Validate() error {
	if m.TrainedAt.IsZero() {
		return errors.New("model state training time is zero")
	}
	if m.FeatureCount <= 0 {
		return errors.New("model state feature count is not positive")
	}
	if len(m.Payload) == 0 {
		return errors.New("model state payload is empty")
	}
	return nil
}
