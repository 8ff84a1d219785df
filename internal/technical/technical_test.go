package technical

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/features"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

func seriesFromCloses(closes []float64) []models.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return points
}

func TestAnalyzeVotes(t *testing.T) {
	rising := make([]float64, 60)
	falling := make([]float64, 60)
	flat := make([]float64, 60)
	for i := range rising {
		rising[i] = 1000 + 10*float64(i)
		falling[i] = 2000 - 10*float64(i)
		flat[i] = 1500
	}

	tests := []struct {
		name         string
		closes       []float64
		wantStrength float64
		wantBullish  int
		wantBearish  int
	}{
		{
			// Above both averages but overbought: +1 +1 -1.
			name:         "rising series",
			closes:       rising,
			wantStrength: 1.0 / 3,
			wantBullish:  2,
			wantBearish:  1,
		},
		{
			// Below both averages but oversold: -1 -1 +1.
			name:         "falling series",
			closes:       falling,
			wantStrength: -1.0 / 3,
			wantBullish:  1,
			wantBearish:  2,
		},
		{
			// Equal to both averages counts against, neutral RSI counts
			// for: -1 -1 +1.
			name:         "flat series",
			closes:       flat,
			wantStrength: -1.0 / 3,
			wantBullish:  1,
			wantBearish:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Analyze(seriesFromCloses(tt.closes))
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}

			if math.Abs(res.Strength-tt.wantStrength) > 1e-12 {
				t.Errorf("Strength = %f, want %f", res.Strength, tt.wantStrength)
			}
			if res.Bullish != tt.wantBullish || res.Bearish != tt.wantBearish {
				t.Errorf("votes = %d bullish / %d bearish, want %d / %d",
					res.Bullish, res.Bearish, tt.wantBullish, tt.wantBearish)
			}

			current := tt.closes[len(tt.closes)-1]
			wantChange := tt.wantStrength * changePerVote
			if math.Abs(res.Price-current*(1+wantChange)) > 1e-9 {
				t.Errorf("Price = %f, want %f", res.Price, current*(1+wantChange))
			}
			if math.Abs(res.ChangePct-wantChange*100) > 1e-9 {
				t.Errorf("ChangePct = %f, want %f", res.ChangePct, wantChange*100)
			}
			if math.Abs(res.Confidence-math.Abs(tt.wantStrength)) > 1e-12 {
				t.Errorf("Confidence = %f, want %f", res.Confidence, math.Abs(tt.wantStrength))
			}
		})
	}
}

func TestAnalyzeShortSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1000
	}

	_, err := Analyze(seriesFromCloses(closes))
	var insufficient *features.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Analyze() error = %v, want InsufficientDataError", err)
	}
	if insufficient.Required != 50 || insufficient.Got != 30 {
		t.Errorf("InsufficientDataError = %+v, want Required 50 Got 30", insufficient)
	}
}

func TestAnalyzeUsesLatestClose(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1000 + 10*float64(i)
	}
	series := seriesFromCloses(closes)

	// Shuffle the order; Analyze must anchor on the newest date.
	series[0], series[59] = series[59], series[0]

	res, err := Analyze(series)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	current := closes[59]
	if res.Price < current*0.9 || res.Price > current*1.1 {
		t.Errorf("Price = %f, want anchored near the newest close %f", res.Price, current)
	}
}
