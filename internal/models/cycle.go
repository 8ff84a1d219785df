package models

import (
	"errors"
	"time"
)

// CyclePhase labels where the market sits within a four-year halving cycle.
type CyclePhase string

const (
	PhaseAccumulation CyclePhase = "accumulation"
	PhaseParabolic    CyclePhase = "parabolic"
	PhaseDistribution CyclePhase = "distribution"
	PhaseCapitulation CyclePhase = "capitulation"
	PhaseUnknown      CyclePhase = "unknown"
)

// PhaseBoundaries holds the inclusive upper bound of each phase,
// in whole days elapsed since the cycle bottom.
type PhaseBoundaries struct {
	Accumulation int `json:"accumulation"`
	Parabolic    int `json:"parabolic"`
	Distribution int `json:"distribution"`
	Capitulation int `json:"capitulation"`
}

// PhaseTransition records a crossing from one cycle phase into another.
type PhaseTransition struct {
	From            CyclePhase `json:"from"`
	To              CyclePhase `json:"to"`
	At              time.Time  `json:"at"`
	DaysSinceBottom int        `json:"days_since_bottom"`
}

// Recommendation is the strategy guidance attached to a cycle phase.
type Recommendation struct {
	Phase         CyclePhase `json:"phase"`
	Strategy      string     `json:"strategy"`
	Risk          string     `json:"risk"`
	Timeframe     string     `json:"timeframe"`
	KeyIndicators []string   `json:"key_indicators"`
}

// CycleConfig is one immutable version of the cycle calendar. Rollovers
// produce a new version instead of mutating the previous one.
type CycleConfig struct {
	Version              int             `json:"version"`
	Halvings             []time.Time     `json:"halvings"`
	Peaks                []time.Time     `json:"peaks"`
	Bottoms              []time.Time     `json:"bottoms"`
	BottomAnchor         time.Time       `json:"bottom_anchor"`
	BottomPrice          float64         `json:"bottom_price"`
	ProjectedPeakDate    time.Time       `json:"projected_peak_date"`
	ProjectedPeakPrice   float64         `json:"projected_peak_price"`
	ProjectedBottomDate  time.Time       `json:"projected_bottom_date"`
	ProjectedBottomPrice float64         `json:"projected_bottom_price"`
	Boundaries           PhaseBoundaries `json:"boundaries"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Validate checks if the cycle calendar is internally consistent
func (c *CycleConfig) Validate() error {
	if c.Version <= 0 {
		return errors.New("cycle config version is not positive")
	}
	if len(c.Halvings) < 2 {
		return errors.New("cycle config needs at least two halving dates")
	}
	for i := 1; i < len(c.Halvings); i++ {
		if !c.Halvings[i].After(c.Halvings[i-1]) {
			return errors.New("cycle config halving dates are not ascending")
		}
	}
	if c.BottomAnchor.IsZero() {
		return errors.New("cycle config bottom anchor is zero")
	}
	if c.BottomPrice <= 0 {
		return errors.New("cycle config bottom price is not positive")
	}
	if !c.ProjectedPeakDate.After(c.BottomAnchor) {
		return errors.New("cycle config projected peak is not after the bottom anchor")
	}
	if !c.ProjectedBottomDate.After(c.BottomAnchor) {
		return errors.New("cycle config projected bottom is not after the bottom anchor")
	}
	if c.ProjectedPeakPrice <= 0 || c.ProjectedBottomPrice <= 0 {
		return errors.New("cycle config projected prices are not positive")
	}
	if c.ProjectedPeakPrice <= c.ProjectedBottomPrice {
		return errors.New("cycle config projected peak price is not above the projected bottom price")
	}
	b := c.Boundaries
	if b.Accumulation <= 0 || b.Parabolic <= b.Accumulation ||
		b.Distribution <= b.Parabolic || b.Capitulation <= b.Distribution {
		return errors.New("cycle config phase boundaries are not strictly ascending")
	}
	return nil
}

// Cycle is one halving-to-halving interval with its recorded extremes.
// Peak and bottom dates are nil until the interval has them on record.
type Cycle struct {
	Number       int        `json:"number"`
	HalvingStart time.Time  `json:"halving_start"`
	HalvingEnd   time.Time  `json:"halving_end"`
	PeakDate     *time.Time `json:"peak_date,omitempty"`
	BottomDate   *time.Time `json:"bottom_date,omitempty"`
	Completed    bool       `json:"completed"`
}

// LengthDays returns the interval length in whole days.
func (c Cycle) LengthDays() int {
	return int(c.HalvingEnd.Sub(c.HalvingStart).Hours() / 24)
}

// CycleStructure is the full halving calendar expanded into cycles.
// Current is the most recent cycle, whose extremes are projections.
type CycleStructure struct {
	Cycles  []Cycle `json:"cycles"`
	Current Cycle   `json:"current"`
}
