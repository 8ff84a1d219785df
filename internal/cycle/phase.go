package cycle

import (
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// DaysSinceBottom returns whole days from the bottom anchor to at.
func DaysSinceBottom(cc models.CycleConfig, at time.Time) int {
	return daysBetween(cc.BottomAnchor, at)
}

// Classify maps the elapsed days since the bottom anchor onto a phase.
// Times before the anchor or past the last boundary are unknown.
func Classify(cc models.CycleConfig, at time.Time) models.CyclePhase {
	days := DaysSinceBottom(cc, at)
	b := cc.Boundaries
	switch {
	case days < 0:
		return models.PhaseUnknown
	case days <= b.Accumulation:
		return models.PhaseAccumulation
	case days <= b.Parabolic:
		return models.PhaseParabolic
	case days <= b.Distribution:
		return models.PhaseDistribution
	case days <= b.Capitulation:
		return models.PhaseCapitulation
	default:
		return models.PhaseUnknown
	}
}

// Observe classifies at and reports a transition event when the phase
// differs from prev. A first observation (empty prev) never transitions.
func Observe(cc models.CycleConfig, prev models.CyclePhase, at time.Time) (models.CyclePhase, *models.PhaseTransition) {
	phase := Classify(cc, at)
	if prev == "" || prev == phase {
		return phase, nil
	}
	return phase, &models.PhaseTransition{
		From:            prev,
		To:              phase,
		At:              at,
		DaysSinceBottom: DaysSinceBottom(cc, at),
	}
}

// RecommendationFor returns the strategy guidance for a phase.
func RecommendationFor(phase models.CyclePhase) models.Recommendation {
	switch phase {
	case models.PhaseAccumulation:
		return models.Recommendation{
			Phase:         phase,
			Strategy:      "Accumulate BTC gradually",
			Risk:          "Low",
			Timeframe:     "Long-term (2-4 years)",
			KeyIndicators: []string{"Price consolidation", "Low volume", "Fear sentiment"},
		}
	case models.PhaseParabolic:
		return models.Recommendation{
			Phase:         phase,
			Strategy:      "Hold and monitor for distribution signals",
			Risk:          "Medium-High",
			Timeframe:     "Medium-term (6-18 months)",
			KeyIndicators: []string{"Rapid price increase", "High volume", "FOMO sentiment"},
		}
	case models.PhaseDistribution:
		return models.Recommendation{
			Phase:         phase,
			Strategy:      "Consider taking profits gradually",
			Risk:          "High",
			Timeframe:     "Short-term (3-6 months)",
			KeyIndicators: []string{"Price volatility", "Divergence patterns", "Smart money selling"},
		}
	case models.PhaseCapitulation:
		return models.Recommendation{
			Phase:         phase,
			Strategy:      "Prepare for accumulation phase",
			Risk:          "Very High",
			Timeframe:     "Short-term (1-3 months)",
			KeyIndicators: []string{"Sharp price decline", "Panic selling", "Extreme fear"},
		}
	default:
		return models.Recommendation{
			Phase:    models.PhaseUnknown,
			Strategy: "Monitor market conditions",
		}
	}
}
