package cycle

import (
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// Timers counts days to the next calendar milestones. Passed peak or
// bottom projections read negative until the calendar rolls over.
type Timers struct {
	NextHalving      time.Time
	DaysUntilHalving int
	DaysUntilPeak    int
	DaysUntilBottom  int
}

// TimersAt computes the milestone countdowns at the given time. When
// every listed halving has passed, the list extends by whole cycle
// lengths until one lies ahead.
func TimersAt(cc models.CycleConfig, at time.Time) Timers {
	var next time.Time
	for _, h := range cc.Halvings {
		if h.After(at) {
			next = h
			break
		}
	}
	if next.IsZero() {
		next = cc.Halvings[len(cc.Halvings)-1]
		for !next.After(at) {
			next = next.AddDate(0, 0, cycleLengthDays)
		}
	}

	return Timers{
		NextHalving:      next,
		DaysUntilHalving: daysBetween(at, next),
		DaysUntilPeak:    daysBetween(at, cc.ProjectedPeakDate),
		DaysUntilBottom:  daysBetween(at, cc.ProjectedBottomDate),
	}
}

// Stats summarizes the cycle position and price distances at one moment.
// Progress runs from the bottom anchor to the projected peak.
type Stats struct {
	Phase            models.CyclePhase
	DaysSinceBottom  int
	ProgressPct      float64
	ROIFromBottomPct float64
	ToPeakPct        float64
	BottomToPeakPct  float64
}

// StatsAt computes the cycle statistics for the given price and time.
func StatsAt(cc models.CycleConfig, at time.Time, currentPrice float64) Stats {
	days := DaysSinceBottom(cc, at)
	s := Stats{
		Phase:           Classify(cc, at),
		DaysSinceBottom: days,
	}

	if span := daysBetween(cc.BottomAnchor, cc.ProjectedPeakDate); span > 0 {
		s.ProgressPct = float64(days) / float64(span) * 100
	}
	if cc.BottomPrice > 0 {
		s.BottomToPeakPct = (cc.ProjectedPeakPrice - cc.BottomPrice) / cc.BottomPrice * 100
		if currentPrice > 0 {
			s.ROIFromBottomPct = (currentPrice - cc.BottomPrice) / cc.BottomPrice * 100
		}
	}
	if currentPrice > 0 {
		s.ToPeakPct = (cc.ProjectedPeakPrice - currentPrice) / currentPrice * 100
	}

	return s
}

// ProjectedCycle is one future halving interval.
type ProjectedCycle struct {
	Number  int
	Halving time.Time
	Peak    time.Time
	Bottom  time.Time
}

// FutureCycles projects count cycles beyond the calendar, numbering on
// from the current cycle.
func FutureCycles(cc models.CycleConfig, count int) []ProjectedCycle {
	out := make([]ProjectedCycle, 0, count)
	halving := cc.Halvings[len(cc.Halvings)-1]
	peak := cc.ProjectedPeakDate
	bottom := cc.ProjectedBottomDate
	base := len(cc.Halvings) - 1

	for i := 0; i < count; i++ {
		peak = peak.AddDate(0, 0, cycleLengthDays)
		bottom = bottom.AddDate(0, 0, cycleLengthDays)
		out = append(out, ProjectedCycle{
			Number:  base + i + 1,
			Halving: halving,
			Peak:    peak,
			Bottom:  bottom,
		})
		halving = halving.AddDate(0, 0, cycleLengthDays)
	}
	return out
}
