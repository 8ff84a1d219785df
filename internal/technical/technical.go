// Package technical scores rule-based indicator signals over the recent
// closing series.
package technical

import (
	"math"
	"sort"

	"github.com/igor-bro/btc-cycle-timer/internal/features"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// minPoints covers the widest rule window.
const minPoints = 50

// changePerVote scales the net vote strength into a price change.
const changePerVote = 0.10

// Result is a rule-based price estimate with its vote breakdown.
type Result struct {
	Price      float64
	ChangePct  float64
	Strength   float64
	Confidence float64
	Bullish    int
	Bearish    int
}

// Analyze votes three rules on the latest close: position against the 20
// and 50 day averages, and the RSI band. Overbought RSI votes bearish,
// anything else including oversold votes bullish. The net vote count over
// 3 gives the signal strength in [-1, 1]; the implied change is strength
// scaled by changePerVote, anchored on the last close.
func Analyze(series []models.PricePoint) (Result, error) {
	if len(series) < minPoints {
		return Result{}, &features.InsufficientDataError{Required: minPoints, Got: len(series)}
	}

	points := make([]models.PricePoint, len(series))
	copy(points, series)
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	current := closes[len(closes)-1]

	sma20 := features.SMA(closes, 20)
	sma50 := features.SMA(closes, 50)
	rsi := features.RSI(closes, 14)

	votes, bullish, bearish := 0, 0, 0
	up := func() { votes++; bullish++ }
	down := func() { votes--; bearish++ }

	if current > sma20 {
		up()
	} else {
		down()
	}
	if current > sma50 {
		up()
	} else {
		down()
	}
	switch {
	case rsi > 30 && rsi < 70:
		up()
	case rsi > 70:
		down()
	case rsi < 30:
		up()
	}

	strength := float64(votes) / 3
	change := strength * changePerVote

	return Result{
		Price:      current * (1 + change),
		ChangePct:  change * 100,
		Strength:   strength,
		Confidence: math.Abs(strength),
		Bullish:    bullish,
		Bearish:    bearish,
	}, nil
}
