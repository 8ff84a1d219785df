// Package features derives the model feature matrix from a daily price
// series and the halving calendar.
package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

const (
	// Horizon is the label look-ahead, in daily periods.
	Horizon = 30

	// Count is the number of features in a vector.
	Count = 15

	// longestWindow is the widest indicator window; rows before it are
	// not fully defined.
	longestWindow = 200
)

// InsufficientDataError reports a series too short for the requested
// computation.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d points, got %d", e.Required, e.Got)
}

// Row is one fully-defined feature vector with its optional learning label.
type Row struct {
	Date time.Time

	Return1          float64
	Return30         float64
	MA20             float64
	MA50             float64
	MA200            float64
	PriceMA20Ratio   float64
	PriceMA50Ratio   float64
	Pivot            float64
	Support1         float64
	Resistance1      float64
	RSI14            float64
	MACD             float64
	VolumeRatio      float64
	DaysSinceHalving float64
	CycleProgress    float64

	Label   float64
	Labeled bool
}

// Vector returns the features in their canonical order.
func (r Row) Vector() []float64 {
	return []float64{
		r.Return1, r.Return30,
		r.MA20, r.MA50, r.MA200,
		r.PriceMA20Ratio, r.PriceMA50Ratio,
		r.Pivot, r.Support1, r.Resistance1,
		r.RSI14, r.MACD, r.VolumeRatio,
		r.DaysSinceHalving, r.CycleProgress,
	}
}

// Builder derives feature rows, anchoring the cycle features on the
// current halving interval.
type Builder struct {
	halvingStart time.Time
	halvingEnd   time.Time
}

// NewBuilder returns a builder for the given current cycle.
func NewBuilder(current models.Cycle) *Builder {
	return &Builder{
		halvingStart: current.HalvingStart,
		halvingEnd:   current.HalvingEnd,
	}
}

// Build computes one feature row per day from the first index where every
// indicator window is covered. Each row is labeled with the close Horizon
// days ahead when the series extends that far. For a series of length L it
// yields exactly L minus the longest window rows.
func (b *Builder) Build(series []models.PricePoint) ([]Row, error) {
	if len(series) <= longestWindow {
		return nil, &InsufficientDataError{Required: longestWindow + 1, Got: len(series)}
	}

	points := make([]models.PricePoint, len(series))
	copy(points, series)
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	closes := make([]float64, len(points))
	volumes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
		volumes[i] = p.Volume
	}

	ma20 := rollingMean(closes, 20)
	ma50 := rollingMean(closes, 50)
	ma200 := rollingMean(closes, 200)
	volMA20 := rollingMean(volumes, 20)
	rsi14 := rsiSeries(closes, 14)
	macd := macdSeries(closes)

	cycleDays := b.halvingEnd.Sub(b.halvingStart).Hours() / 24

	rows := make([]Row, 0, len(points)-longestWindow)
	for i := longestWindow; i < len(points); i++ {
		p := points[i]
		pivot := (p.High + p.Low + p.Close) / 3

		volumeRatio := 1.0
		if volMA20[i] > 0 {
			volumeRatio = volumes[i] / volMA20[i]
		}

		daysSinceHalving := p.Date.Sub(b.halvingStart).Hours() / 24

		row := Row{
			Date:             p.Date,
			Return1:          pctChange(closes[i-1], closes[i]),
			Return30:         pctChange(closes[i-Horizon], closes[i]),
			MA20:             ma20[i],
			MA50:             ma50[i],
			MA200:            ma200[i],
			PriceMA20Ratio:   closes[i] / ma20[i],
			PriceMA50Ratio:   closes[i] / ma50[i],
			Pivot:            pivot,
			Support1:         2*pivot - p.High,
			Resistance1:      2*pivot - p.Low,
			RSI14:            rsi14[i],
			MACD:             macd[i],
			VolumeRatio:      volumeRatio,
			DaysSinceHalving: daysSinceHalving,
			CycleProgress:    daysSinceHalving / cycleDays * 100,
		}

		if i+Horizon < len(points) {
			row.Label = closes[i+Horizon]
			row.Labeled = true
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}
