// Package ensemble blends three regressors into one price estimate with a
// model-agreement score, and serializes trained state for persistence.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/features"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// Strategy names as trained, persisted and reported.
const (
	StrategyRandomForest  = "random_forest"
	StrategyGradientBoost = "gradient_boost"
	StrategyLinear        = "linear"
)

// strategyWeights blends the regressors; the weights sum to 1.
var strategyWeights = map[string]float64{
	StrategyRandomForest:  0.4,
	StrategyGradientBoost: 0.4,
	StrategyLinear:        0.2,
}

const (
	trainFraction = 0.8
	minTrainRows  = 50

	forestSeed    = 42
	forestTrees   = 100
	forestDepth   = 12
	forestMinLeaf = 2

	boostTrees     = 100
	boostDepth     = 3
	boostMinLeaf   = 2
	boostShrinkage = 0.1

	linearRate       = 0.01
	linearIterations = 2000
)

// NotTrainedError reports a prediction or export attempt before any
// training or restore.
type NotTrainedError struct{}

func (e *NotTrainedError) Error() string {
	return "ensemble has not been trained"
}

type predictor interface {
	predict(x []float64) float64
}

// payload is the serialized form of every trained strategy.
type payload struct {
	Forest  *forestModel               `json:"random_forest"`
	Boost   *boostModel                `json:"gradient_boost"`
	Linear  *linearModel               `json:"linear"`
	Scalers map[string]*standardScaler `json:"scalers"`
}

type trained struct {
	payload      payload
	metrics      map[string]models.StrategyMetrics
	trainedAt    time.Time
	featureCount int
	trainRows    int
	testRows     int
}

// Ensemble holds the active model state behind a mutex; training and
// restoring swap the whole state at once.
type Ensemble struct {
	mu    sync.RWMutex
	state *trained
}

// New returns an untrained ensemble.
func New() *Ensemble {
	return &Ensemble{}
}

// Train fits all strategies on the labeled rows, holding out the newest
// fifth as the test split. The rows must be in ascending time order. On
// success the new state replaces the old one atomically.
func (e *Ensemble) Train(rows []features.Row) (map[string]models.StrategyMetrics, error) {
	var labeled []features.Row
	for _, row := range rows {
		if row.Labeled {
			labeled = append(labeled, row)
		}
	}
	if len(labeled) < minTrainRows {
		return nil, &features.InsufficientDataError{Required: minTrainRows, Got: len(labeled)}
	}

	X := make([][]float64, len(labeled))
	y := make([]float64, len(labeled))
	for i, row := range labeled {
		X[i] = row.Vector()
		y[i] = row.Label
	}

	split := int(float64(len(labeled)) * trainFraction)
	XTrain, yTrain := X[:split], y[:split]
	XTest, yTest := X[split:], y[split:]

	st := &trained{
		payload:      payload{Scalers: make(map[string]*standardScaler)},
		metrics:      make(map[string]models.StrategyMetrics),
		trainedAt:    time.Now().UTC(),
		featureCount: features.Count,
		trainRows:    len(yTrain),
		testRows:     len(yTest),
	}

	fit := func(name string, train func([][]float64, []float64) predictor) predictor {
		scaler := fitScaler(XTrain)
		model := train(scaler.transformAll(XTrain), yTrain)
		st.payload.Scalers[name] = scaler
		st.metrics[name] = evaluate(model, scaler, XTrain, yTrain, XTest, yTest)
		return model
	}

	st.payload.Forest = fit(StrategyRandomForest, func(X [][]float64, y []float64) predictor {
		return trainForest(X, y, forestSeed, forestTrees, treeParams{maxDepth: forestDepth, minLeaf: forestMinLeaf})
	}).(*forestModel)

	st.payload.Boost = fit(StrategyGradientBoost, func(X [][]float64, y []float64) predictor {
		return trainBoost(X, y, boostTrees, boostShrinkage, treeParams{maxDepth: boostDepth, minLeaf: boostMinLeaf})
	}).(*boostModel)

	st.payload.Linear = fit(StrategyLinear, func(X [][]float64, y []float64) predictor {
		return trainLinear(X, y, linearRate, linearIterations)
	}).(*linearModel)

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()

	return copyMetrics(st.metrics), nil
}

// Result is one blended prediction with its per-strategy estimates.
type Result struct {
	Estimate    float64
	Agreement   float64
	PerStrategy map[string]float64
}

// Predict runs every strategy on the row and blends the estimates.
// Agreement shrinks toward 0 as the strategies spread apart.
func (e *Ensemble) Predict(row features.Row) (Result, error) {
	e.mu.RLock()
	st := e.state
	e.mu.RUnlock()
	if st == nil {
		return Result{}, &NotTrainedError{}
	}

	x := row.Vector()
	if len(x) != st.featureCount {
		return Result{}, fmt.Errorf("feature count mismatch: got %d, want %d", len(x), st.featureCount)
	}

	per := map[string]float64{
		StrategyRandomForest:  st.payload.Forest.predict(st.payload.Scalers[StrategyRandomForest].transform(x)),
		StrategyGradientBoost: st.payload.Boost.predict(st.payload.Scalers[StrategyGradientBoost].transform(x)),
		StrategyLinear:        st.payload.Linear.predict(st.payload.Scalers[StrategyLinear].transform(x)),
	}

	estimate := strategyWeights[StrategyRandomForest]*per[StrategyRandomForest] +
		strategyWeights[StrategyGradientBoost]*per[StrategyGradientBoost] +
		strategyWeights[StrategyLinear]*per[StrategyLinear]

	agreement := 0.0
	if estimate > 0 {
		spread := stddev([]float64{
			per[StrategyRandomForest],
			per[StrategyGradientBoost],
			per[StrategyLinear],
		})
		agreement = 1 - spread/estimate
		if agreement < 0 {
			agreement = 0
		}
		if agreement > 1 {
			agreement = 1
		}
	}

	return Result{Estimate: estimate, Agreement: agreement, PerStrategy: per}, nil
}

// Trained reports whether a model state is active.
func (e *Ensemble) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != nil
}

// Metrics returns the metrics of the active model, or nil before training.
func (e *Ensemble) Metrics() map[string]models.StrategyMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil
	}
	return copyMetrics(e.state.metrics)
}

// Export snapshots the active model state for persistence.
func (e *Ensemble) Export() (*models.ModelState, error) {
	e.mu.RLock()
	st := e.state
	e.mu.RUnlock()
	if st == nil {
		return nil, &NotTrainedError{}
	}

	raw, err := json.Marshal(st.payload)
	if err != nil {
		return nil, fmt.Errorf("marshal model payload: %w", err)
	}

	return &models.ModelState{
		TrainedAt:    st.trainedAt,
		FeatureCount: st.featureCount,
		TrainRows:    st.trainRows,
		TestRows:     st.testRows,
		Metrics:      copyMetrics(st.metrics),
		Payload:      raw,
	}, nil
}

// Restore replaces the active model state with a previously exported
// snapshot.
func (e *Ensemble) Restore(state *models.ModelState) error {
	if state == nil {
		return errors.New("model state is nil")
	}
	if err := state.Validate(); err != nil {
		return err
	}

	var p payload
	if err := json.Unmarshal(state.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal model payload: %w", err)
	}
	if p.Forest == nil || p.Boost == nil || p.Linear == nil {
		return errors.New("model state payload is incomplete")
	}
	for _, name := range []string{StrategyRandomForest, StrategyGradientBoost, StrategyLinear} {
		if p.Scalers[name] == nil {
			return fmt.Errorf("model state is missing the %s scaler", name)
		}
	}

	st := &trained{
		payload:      p,
		metrics:      copyMetrics(state.Metrics),
		trainedAt:    state.TrainedAt,
		featureCount: state.FeatureCount,
		trainRows:    state.TrainRows,
		testRows:     state.TestRows,
	}

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	return nil
}

func evaluate(model predictor, scaler *standardScaler, XTrain [][]float64, yTrain []float64, XTest [][]float64, yTest []float64) models.StrategyMetrics {
	trainMAE, trainRMSE, trainR2 := scoreSplit(model, scaler, XTrain, yTrain)
	testMAE, testRMSE, testR2 := scoreSplit(model, scaler, XTest, yTest)
	return models.StrategyMetrics{
		TrainMAE:  trainMAE,
		TestMAE:   testMAE,
		TrainRMSE: trainRMSE,
		TestRMSE:  testRMSE,
		TrainR2:   trainR2,
		TestR2:    testR2,
	}
}

func scoreSplit(model predictor, scaler *standardScaler, X [][]float64, y []float64) (mae, rmse, r2 float64) {
	if len(y) == 0 {
		return 0, 0, 0
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	ssRes, ssTot, absSum := 0.0, 0.0, 0.0
	for i, row := range X {
		err := model.predict(scaler.transform(row)) - y[i]
		absSum += math.Abs(err)
		ssRes += err * err
		d := y[i] - mean
		ssTot += d * d
	}

	mae = absSum / float64(len(y))
	rmse = math.Sqrt(ssRes / float64(len(y)))
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return mae, rmse, r2
}

func stddev(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

func copyMetrics(in map[string]models.StrategyMetrics) map[string]models.StrategyMetrics {
	if in == nil {
		return nil
	}
	out := make(map[string]models.StrategyMetrics, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
