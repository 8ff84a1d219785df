package cycle

import (
	"math"
	"testing"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

func pricePoint(d time.Time, close float64) models.PricePoint {
	return models.PricePoint{Date: d, Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

// testConfig is a compact two-cycle calendar with easy numbers.
func testConfig() models.CycleConfig {
	return models.CycleConfig{
		Version:              1,
		Halvings:             []time.Time{day(2020, 1, 1), day(2021, 1, 1), day(2022, 1, 1)},
		Peaks:                []time.Time{day(2020, 6, 1)},
		Bottoms:              []time.Time{day(2020, 9, 1)},
		BottomAnchor:         day(2020, 9, 1),
		BottomPrice:          80,
		ProjectedPeakDate:    day(2021, 6, 1),
		ProjectedPeakPrice:   500,
		ProjectedBottomDate:  day(2021, 9, 1),
		ProjectedBottomPrice: 150,
		Boundaries:           models.PhaseBoundaries{Accumulation: 180, Parabolic: 730, Distribution: 1000, Capitulation: 1460},
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig failed validation: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Expected version 1, got %d", cfg.Version)
	}
}

func TestStructureDefaultCalendar(t *testing.T) {
	st := Structure(DefaultConfig())

	if len(st.Cycles) != 4 {
		t.Fatalf("Expected 4 cycles, got %d", len(st.Cycles))
	}

	first := st.Cycles[0]
	if first.Number != 1 || !first.Completed {
		t.Errorf("Expected completed cycle 1, got number=%d completed=%v", first.Number, first.Completed)
	}
	if !first.HalvingStart.Equal(day(2012, 11, 28)) || !first.HalvingEnd.Equal(day(2016, 7, 9)) {
		t.Errorf("Unexpected cycle 1 interval: %v - %v", first.HalvingStart, first.HalvingEnd)
	}
	if first.PeakDate == nil || !first.PeakDate.Equal(day(2013, 11, 29)) {
		t.Errorf("Unexpected cycle 1 peak: %v", first.PeakDate)
	}
	if first.BottomDate == nil || !first.BottomDate.Equal(day(2015, 1, 14)) {
		t.Errorf("Unexpected cycle 1 bottom: %v", first.BottomDate)
	}

	third := st.Cycles[2]
	if !third.Completed {
		t.Error("Expected cycle 3 to be completed")
	}
	if third.BottomDate == nil || !third.BottomDate.Equal(day(2022, 11, 22)) {
		t.Errorf("Unexpected cycle 3 bottom: %v", third.BottomDate)
	}

	cur := st.Current
	if cur.Number != 4 || cur.Completed {
		t.Errorf("Expected open cycle 4 as current, got number=%d completed=%v", cur.Number, cur.Completed)
	}
	if cur.PeakDate == nil || !cur.PeakDate.Equal(day(2025, 10, 11)) {
		t.Errorf("Expected projected peak on current cycle, got %v", cur.PeakDate)
	}
	if cur.BottomDate == nil || !cur.BottomDate.Equal(day(2026, 10, 30)) {
		t.Errorf("Expected projected bottom on current cycle, got %v", cur.BottomDate)
	}
}

func TestAnalyzeHistory(t *testing.T) {
	series := []models.PricePoint{
		pricePoint(day(2020, 2, 1), 100),
		pricePoint(day(2020, 6, 1), 400),
		pricePoint(day(2020, 9, 1), 80),
		pricePoint(day(2020, 12, 1), 120),
		pricePoint(day(2021, 6, 1), 300), // open cycle, ignored
	}

	stats := AnalyzeHistory(Structure(testConfig()), series)
	if len(stats) != 1 {
		t.Fatalf("Expected stats for 1 cycle, got %d", len(stats))
	}

	s := stats[0]
	if s.Number != 1 {
		t.Errorf("Expected cycle number 1, got %d", s.Number)
	}
	if s.PeakPrice != 400 || s.BottomPrice != 80 {
		t.Errorf("Expected extremes 400/80, got %v/%v", s.PeakPrice, s.BottomPrice)
	}
	if math.Abs(s.Ratio-5) > 1e-9 {
		t.Errorf("Expected ratio 5, got %v", s.Ratio)
	}
	if !s.PeakDate.Equal(day(2020, 6, 1)) || !s.BottomDate.Equal(day(2020, 9, 1)) {
		t.Errorf("Unexpected extremum dates: %v / %v", s.PeakDate, s.BottomDate)
	}
	if s.DaysToPeak != 152 {
		t.Errorf("Expected 152 days to peak, got %d", s.DaysToPeak)
	}
	if s.LengthDays != 366 {
		t.Errorf("Expected 366 day cycle, got %d", s.LengthDays)
	}
	if s.Records != 4 {
		t.Errorf("Expected 4 records, got %d", s.Records)
	}
}

func TestAggregateHistory(t *testing.T) {
	stats := []CycleStats{
		{Ratio: 4, LengthDays: 1320, DaysToPeak: 500},
		{Ratio: 6, LengthDays: 1400, DaysToPeak: 700},
	}

	agg, ok := AggregateHistory(stats)
	if !ok {
		t.Fatal("Expected an aggregate")
	}
	if math.Abs(agg.MeanRatio-5) > 1e-9 {
		t.Errorf("Expected mean ratio 5, got %v", agg.MeanRatio)
	}
	if math.Abs(agg.MeanLengthDays-1360) > 1e-9 {
		t.Errorf("Expected mean length 1360, got %v", agg.MeanLengthDays)
	}
	if math.Abs(agg.MeanDaysToPeak-600) > 1e-9 {
		t.Errorf("Expected mean days to peak 600, got %v", agg.MeanDaysToPeak)
	}
	if agg.Cycles != 2 {
		t.Errorf("Expected 2 cycles, got %d", agg.Cycles)
	}

	if _, ok := AggregateHistory(nil); ok {
		t.Error("Expected no aggregate without stats")
	}
}

func TestAnalyzeHistoryNoData(t *testing.T) {
	if stats := AnalyzeHistory(Structure(testConfig()), nil); len(stats) != 0 {
		t.Errorf("Expected no stats without price data, got %d", len(stats))
	}
}

func TestAnalyzeHistorySkipsUnrecordedCycles(t *testing.T) {
	// Five halvings but a single recorded peak/bottom pair: cycle 3 is
	// completed and has price data, yet without extremum dates on record
	// it must not produce stats.
	cfg := testConfig()
	cfg.Halvings = []time.Time{
		day(2020, 1, 1), day(2021, 1, 1), day(2022, 1, 1), day(2023, 1, 1), day(2024, 1, 1),
	}

	series := []models.PricePoint{
		pricePoint(day(2020, 6, 1), 400),
		pricePoint(day(2020, 9, 1), 80),
		pricePoint(day(2022, 6, 1), 250),
		pricePoint(day(2022, 9, 1), 120),
	}

	stats := AnalyzeHistory(Structure(cfg), series)
	if len(stats) != 1 {
		t.Fatalf("Expected stats for cycle 1 only, got %d entries", len(stats))
	}
	if stats[0].Number != 1 {
		t.Errorf("Expected cycle 1, got %d", stats[0].Number)
	}
}

func TestPredictFromHistory(t *testing.T) {
	series := []models.PricePoint{
		pricePoint(day(2020, 6, 1), 400),
		pricePoint(day(2020, 9, 1), 80),
	}

	pred, ok := PredictFromHistory(Structure(testConfig()), series, 50)
	if !ok {
		t.Fatal("Expected a prediction")
	}
	if math.Abs(pred.Price-250) > 1e-9 {
		t.Errorf("Expected price 250, got %v", pred.Price)
	}
	if math.Abs(pred.MeanRatio-5) > 1e-9 {
		t.Errorf("Expected mean ratio 5, got %v", pred.MeanRatio)
	}
	if pred.Confidence != cycleConfidence {
		t.Errorf("Expected confidence %v, got %v", cycleConfidence, pred.Confidence)
	}
	if pred.CyclesUsed != 1 {
		t.Errorf("Expected 1 cycle used, got %d", pred.CyclesUsed)
	}
}

func TestPredictFromHistoryNoSignal(t *testing.T) {
	st := Structure(testConfig())
	series := []models.PricePoint{pricePoint(day(2020, 6, 1), 400)}

	if _, ok := PredictFromHistory(st, series, 0); ok {
		t.Error("Expected no prediction for a non-positive price")
	}
	if _, ok := PredictFromHistory(st, nil, 50); ok {
		t.Error("Expected no prediction without price history")
	}
}

func TestRolloverNothingDue(t *testing.T) {
	cfg := DefaultConfig()
	next, rolled := Rollover(cfg, nil, day(2025, 1, 1))
	if rolled {
		t.Fatal("Expected no rollover before any projected date")
	}
	if next.Version != 1 {
		t.Errorf("Expected version to stay at 1, got %d", next.Version)
	}
}

func TestRolloverPeak(t *testing.T) {
	cfg := DefaultConfig()
	at := day(2025, 10, 12)

	next, rolled := Rollover(cfg, nil, at)
	if !rolled {
		t.Fatal("Expected a rollover past the projected peak")
	}
	if len(next.Peaks) != 4 || !next.Peaks[3].Equal(day(2025, 10, 11)) {
		t.Errorf("Expected the passed peak recorded, got %v", next.Peaks)
	}
	if want := day(2025, 10, 11).AddDate(0, 0, cycleLengthDays); !next.ProjectedPeakDate.Equal(want) {
		t.Errorf("Expected projected peak %v, got %v", want, next.ProjectedPeakDate)
	}
	if len(next.Bottoms) != 3 || len(next.Halvings) != 5 {
		t.Errorf("Expected bottoms and halvings untouched, got %d/%d", len(next.Bottoms), len(next.Halvings))
	}
	if next.Version != 2 {
		t.Errorf("Expected version 2, got %d", next.Version)
	}
	if !next.UpdatedAt.Equal(at) {
		t.Errorf("Expected UpdatedAt %v, got %v", at, next.UpdatedAt)
	}
	if len(cfg.Peaks) != 3 {
		t.Errorf("Expected the input config untouched, got %d peaks", len(cfg.Peaks))
	}

	// The same moment must not roll the advanced calendar again.
	if _, again := Rollover(next, nil, at); again {
		t.Error("Expected no second rollover at the same moment")
	}
}

func TestRolloverBottomUsesObservedLow(t *testing.T) {
	cfg := DefaultConfig()
	at := day(2026, 11, 5)
	series := []models.PricePoint{
		pricePoint(day(2025, 9, 1), 50000), // before the peak, excluded
		pricePoint(day(2026, 1, 15), 90000),
		pricePoint(day(2026, 10, 30), 60000),
		pricePoint(day(2026, 11, 1), 70000),
	}

	next, rolled := Rollover(cfg, series, at)
	if !rolled {
		t.Fatal("Expected a rollover past the projected bottom")
	}
	if !next.BottomAnchor.Equal(day(2026, 10, 30)) {
		t.Errorf("Expected bottom anchor 2026-10-30, got %v", next.BottomAnchor)
	}
	if next.BottomPrice != 60000 {
		t.Errorf("Expected observed bottom price 60000, got %v", next.BottomPrice)
	}
	if len(next.Bottoms) != 4 || !next.Bottoms[3].Equal(day(2026, 10, 30)) {
		t.Errorf("Expected the passed bottom recorded, got %v", next.Bottoms)
	}
	if want := day(2026, 10, 30).AddDate(0, 0, cycleLengthDays); !next.ProjectedBottomDate.Equal(want) {
		t.Errorf("Expected projected bottom %v, got %v", want, next.ProjectedBottomDate)
	}
	if next.Version != 2 {
		t.Errorf("Expected a single version bump, got %d", next.Version)
	}
	if err := next.Validate(); err != nil {
		t.Errorf("Rolled config failed validation: %v", err)
	}
}

func TestRolloverBottomFallsBackToProjection(t *testing.T) {
	next, rolled := Rollover(DefaultConfig(), nil, day(2026, 11, 5))
	if !rolled {
		t.Fatal("Expected a rollover past the projected bottom")
	}
	if next.BottomPrice != 75000 {
		t.Errorf("Expected projected bottom price 75000, got %v", next.BottomPrice)
	}
}

func TestRolloverExtendsHalvings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectedPeakDate = day(2030, 1, 1)
	cfg.ProjectedBottomDate = day(2030, 6, 1)

	next, rolled := Rollover(cfg, nil, day(2028, 5, 1))
	if !rolled {
		t.Fatal("Expected a rollover past the final halving")
	}
	if len(next.Halvings) != 6 {
		t.Fatalf("Expected 6 halvings, got %d", len(next.Halvings))
	}
	if want := day(2028, 4, 20).AddDate(0, 0, cycleLengthDays); !next.Halvings[5].Equal(want) {
		t.Errorf("Expected next halving %v, got %v", want, next.Halvings[5])
	}
	if next.Version != 2 {
		t.Errorf("Expected version 2, got %d", next.Version)
	}
}
