package cycle

import (
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// Structure expands the halving calendar into cycles, pairing recorded
// peaks and bottoms by position. The projected pair lands on the current
// cycle, which is never marked completed.
func Structure(cc models.CycleConfig) models.CycleStructure {
	peaks := append(append([]time.Time(nil), cc.Peaks...), cc.ProjectedPeakDate)
	bottoms := append(append([]time.Time(nil), cc.Bottoms...), cc.ProjectedBottomDate)

	cycles := make([]models.Cycle, 0, len(cc.Halvings))
	for i := 0; i+1 < len(cc.Halvings); i++ {
		c := models.Cycle{
			Number:       i + 1,
			HalvingStart: cc.Halvings[i],
			HalvingEnd:   cc.Halvings[i+1],
			Completed:    i+2 < len(cc.Halvings),
		}
		if i < len(peaks) {
			pd := peaks[i]
			c.PeakDate = &pd
		}
		if i < len(bottoms) {
			bd := bottoms[i]
			c.BottomDate = &bd
		}
		cycles = append(cycles, c)
	}

	if len(cycles) == 0 {
		return models.CycleStructure{}
	}
	return models.CycleStructure{Cycles: cycles, Current: cycles[len(cycles)-1]}
}

// CycleStats summarizes observed prices within one completed cycle.
type CycleStats struct {
	Number      int
	PeakPrice   float64
	BottomPrice float64
	Ratio       float64
	PeakDate    time.Time
	BottomDate  time.Time
	DaysToPeak  int
	LengthDays  int
	Records     int
}

// AnalyzeHistory computes price statistics for every completed cycle
// with recorded extremum dates and at least one price point in range.
func AnalyzeHistory(st models.CycleStructure, series []models.PricePoint) []CycleStats {
	var out []CycleStats
	for _, c := range st.Cycles {
		if !c.Completed || c.PeakDate == nil || c.BottomDate == nil {
			continue
		}

		var (
			highest, lowest     float64
			highestAt, lowestAt time.Time
			records             int
		)
		for _, p := range series {
			if p.Date.Before(c.HalvingStart) || p.Date.After(c.HalvingEnd) {
				continue
			}
			if records == 0 || p.Close > highest {
				highest = p.Close
				highestAt = p.Date
			}
			if records == 0 || p.Close < lowest {
				lowest = p.Close
				lowestAt = p.Date
			}
			records++
		}
		if records == 0 || lowest <= 0 {
			continue
		}

		out = append(out, CycleStats{
			Number:      c.Number,
			PeakPrice:   highest,
			BottomPrice: lowest,
			Ratio:       highest / lowest,
			PeakDate:    highestAt,
			BottomDate:  lowestAt,
			DaysToPeak:  daysBetween(c.HalvingStart, highestAt),
			LengthDays:  c.LengthDays(),
			Records:     records,
		})
	}
	return out
}

// HistoryAggregate averages the completed-cycle statistics for reports.
type HistoryAggregate struct {
	MeanRatio      float64
	MeanLengthDays float64
	MeanDaysToPeak float64
	Cycles         int
}

// AggregateHistory reduces per-cycle statistics to their means. The bool
// is false when there is nothing to aggregate.
func AggregateHistory(stats []CycleStats) (HistoryAggregate, bool) {
	if len(stats) == 0 {
		return HistoryAggregate{}, false
	}
	var agg HistoryAggregate
	for _, s := range stats {
		agg.MeanRatio += s.Ratio
		agg.MeanLengthDays += float64(s.LengthDays)
		agg.MeanDaysToPeak += float64(s.DaysToPeak)
	}
	n := float64(len(stats))
	agg.MeanRatio /= n
	agg.MeanLengthDays /= n
	agg.MeanDaysToPeak /= n
	agg.Cycles = len(stats)
	return agg, true
}

// cycleConfidence is the fixed confidence of the historical-ratio method.
const cycleConfidence = 0.8

// Prediction is the cycle-ratio price estimate.
type Prediction struct {
	Price      float64
	MeanRatio  float64
	Confidence float64
	CyclesUsed int
}

// PredictFromHistory projects the current price by the mean peak-to-trough
// close ratio over completed cycles. The bool is false when no completed
// cycle has usable price data.
func PredictFromHistory(st models.CycleStructure, series []models.PricePoint, currentPrice float64) (Prediction, bool) {
	if currentPrice <= 0 {
		return Prediction{}, false
	}

	stats := AnalyzeHistory(st, series)
	sum := 0.0
	used := 0
	for _, s := range stats {
		if s.Ratio > 0 {
			sum += s.Ratio
			used++
		}
	}
	if used == 0 {
		return Prediction{}, false
	}

	mean := sum / float64(used)
	return Prediction{
		Price:      currentPrice * mean,
		MeanRatio:  mean,
		Confidence: cycleConfidence,
		CyclesUsed: used,
	}, true
}
