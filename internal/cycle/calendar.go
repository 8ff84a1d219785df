// Package cycle models the four-year halving calendar: phase
// classification, historical cycle analysis, price projection and
// calendar rollover.
package cycle

import (
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// cycleLengthDays approximates one full halving cycle.
const cycleLengthDays = 1460

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultConfig returns version 1 of the cycle calendar.
func DefaultConfig() models.CycleConfig {
	return models.CycleConfig{
		Version: 1,
		Halvings: []time.Time{
			day(2012, 11, 28),
			day(2016, 7, 9),
			day(2020, 5, 11),
			day(2024, 4, 20),
			day(2028, 4, 20),
		},
		Peaks: []time.Time{
			day(2013, 11, 29),
			day(2017, 12, 17),
			day(2021, 11, 10),
		},
		Bottoms: []time.Time{
			day(2015, 1, 14),
			day(2018, 12, 15),
			day(2022, 11, 22),
		},
		BottomAnchor:         day(2022, 11, 22),
		BottomPrice:          15700,
		ProjectedPeakDate:    day(2025, 10, 11),
		ProjectedPeakPrice:   200000,
		ProjectedBottomDate:  day(2026, 10, 30),
		ProjectedBottomPrice: 75000,
		Boundaries: models.PhaseBoundaries{
			Accumulation: 180,
			Parabolic:    730,
			Distribution: 1000,
			Capitulation: 1460,
		},
	}
}

// Rollover advances the calendar past projected milestones that at has
// crossed: a passed peak joins the peak history, a passed bottom becomes
// the new bottom anchor priced at the lowest close observed since the
// peak, and a passed final halving extends the halving list. Each call
// advances at most one cycle; the version is bumped when anything rolled.
func Rollover(cc models.CycleConfig, series []models.PricePoint, at time.Time) (models.CycleConfig, bool) {
	rolled := false
	next := cc
	next.Halvings = append([]time.Time(nil), cc.Halvings...)
	next.Peaks = append([]time.Time(nil), cc.Peaks...)
	next.Bottoms = append([]time.Time(nil), cc.Bottoms...)

	if at.After(next.ProjectedPeakDate) {
		next.Peaks = append(next.Peaks, next.ProjectedPeakDate)
		next.ProjectedPeakDate = next.ProjectedPeakDate.AddDate(0, 0, cycleLengthDays)
		rolled = true
	}

	if at.After(next.ProjectedBottomDate) {
		bottomDate := next.ProjectedBottomDate
		from := next.Peaks[len(next.Peaks)-1]
		observed, ok := minCloseBetween(series, from, at)
		if !ok || observed <= 0 {
			observed = next.ProjectedBottomPrice
		}
		next.Bottoms = append(next.Bottoms, bottomDate)
		next.BottomAnchor = bottomDate
		next.BottomPrice = observed
		next.ProjectedBottomDate = bottomDate.AddDate(0, 0, cycleLengthDays)
		rolled = true
	}

	if last := next.Halvings[len(next.Halvings)-1]; at.After(last) {
		next.Halvings = append(next.Halvings, last.AddDate(0, 0, cycleLengthDays))
		rolled = true
	}

	if !rolled {
		return cc, false
	}

	next.Version = cc.Version + 1
	next.UpdatedAt = at
	return next, true
}

func minCloseBetween(series []models.PricePoint, from, to time.Time) (float64, bool) {
	lowest := 0.0
	found := false
	for _, p := range series {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		if !found || p.Close < lowest {
			lowest = p.Close
			found = true
		}
	}
	return lowest, found
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
