package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/igor-bro/btc-cycle-timer/internal/cycle"
	"github.com/igor-bro/btc-cycle-timer/internal/forecast"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

var phaseEmoji = map[models.CyclePhase]string{
	models.PhaseAccumulation: "🟢",
	models.PhaseParabolic:    "🟡",
	models.PhaseDistribution: "🟠",
	models.PhaseCapitulation: "🔴",
}

func emojiFor(phase models.CyclePhase) string {
	if e, ok := phaseEmoji[phase]; ok {
		return e
	}
	return "⚪"
}

func usd(v float64) string {
	return escapeMarkdownV2(fmt.Sprintf("$%.2f", v))
}

func pct(v float64) string {
	return escapeMarkdownV2(fmt.Sprintf("%.2f%%", v))
}

// SendForecast sends a combined forecast with its per-method breakdown.
func (c *Client) SendForecast(rec *models.ForecastRecord) error {
	return c.sendMarkdownV2(c.formatForecast(rec))
}

func (c *Client) formatForecast(rec *models.ForecastRecord) string {
	message := "🔮 *BTC Price Forecast*\n\n"
	message += fmt.Sprintf("💰 Current price: `%s`\n", usd(rec.CurrentPrice))
	message += fmt.Sprintf("🎯 Predicted price: `%s`\n", usd(rec.Price))
	message += fmt.Sprintf("📈 Expected change: `%s`\n", escapeMarkdownV2(fmt.Sprintf("%+.2f%%", rec.ChangePct)))
	message += fmt.Sprintf("🤝 Confidence: `%s`\n", escapeMarkdownV2(fmt.Sprintf("%.0f%%", rec.Confidence*100)))
	message += fmt.Sprintf("%s Phase: %s\n", emojiFor(rec.Phase), escapeMarkdownV2(string(rec.Phase)))
	message += fmt.Sprintf("📅 Target date: %s\n", escapeMarkdownV2(rec.TargetDate.Format("2006-01-02")))

	if len(rec.Predictions) > 0 {
		message += "\n🔍 *Methods:*\n"
		for _, p := range rec.Predictions {
			message += fmt.Sprintf("• %s: `%s` \\(weight %s\\)\n",
				escapeMarkdownV2(p.Method), usd(p.Price),
				escapeMarkdownV2(fmt.Sprintf("%.0f%%", rec.Weights[p.Method]*100)))
		}
	}
	return message
}

// SendPhaseChange announces a phase transition with the strategy guidance
// for the phase being entered.
func (c *Client) SendPhaseChange(tr *models.PhaseTransition, price float64) error {
	return c.sendMarkdownV2(c.formatPhaseChange(tr, price))
}

func (c *Client) formatPhaseChange(tr *models.PhaseTransition, price float64) string {
	guidance := cycle.RecommendationFor(tr.To)

	message := "🚨 *Cycle Phase Change*\n\n"
	message += fmt.Sprintf("%s %s → %s %s\n\n",
		emojiFor(tr.From), escapeMarkdownV2(strings.ToUpper(string(tr.From))),
		emojiFor(tr.To), escapeMarkdownV2(strings.ToUpper(string(tr.To))))
	if price > 0 {
		message += fmt.Sprintf("💰 BTC price: `%s`\n", usd(price))
	}
	message += fmt.Sprintf("📆 Day %d of the cycle\n", tr.DaysSinceBottom)

	message += fmt.Sprintf("\n💡 Strategy: %s\n", escapeMarkdownV2(guidance.Strategy))
	if guidance.Risk != "" {
		message += fmt.Sprintf("⚠️ Risk: %s\n", escapeMarkdownV2(guidance.Risk))
		message += fmt.Sprintf("⏱️ Timeframe: %s\n", escapeMarkdownV2(guidance.Timeframe))
	}
	if len(guidance.KeyIndicators) > 0 {
		message += "\n📊 *Key indicators:*\n"
		for _, ind := range guidance.KeyIndicators {
			message += fmt.Sprintf("• %s\n", escapeMarkdownV2(ind))
		}
	}
	return message
}

// SendRetrainReport sends the accuracy summary with the retraining
// outcome.
func (c *Client) SendRetrainReport(res forecast.RetrainResult) error {
	return c.sendMarkdownV2(c.formatRetrain(res))
}

func (c *Client) formatRetrain(res forecast.RetrainResult) string {
	message := "🔄 *Forecast Accuracy Report*\n\n"
	if res.Report != nil {
		message += fmt.Sprintf("• Evaluated: %d \\(pending %d\\)\n", res.Report.Evaluated, res.Report.Pending)
		if res.Report.Evaluated > 0 {
			message += fmt.Sprintf("• Mean accuracy: `%s`\n", escapeMarkdownV2(fmt.Sprintf("%.1f%%", res.Report.MeanAccuracy)))
			message += fmt.Sprintf("• Mean error: `%s`\n", escapeMarkdownV2(fmt.Sprintf("%.1f%%", res.Report.MeanErrorPct)))
		}
		if len(res.Report.ByMethod) > 0 {
			methods := make([]string, 0, len(res.Report.ByMethod))
			for method := range res.Report.ByMethod {
				methods = append(methods, method)
			}
			sort.Strings(methods)
			message += "\n🔍 *Per method:*\n"
			for _, method := range methods {
				message += fmt.Sprintf("• %s: `%s`\n", escapeMarkdownV2(method),
					escapeMarkdownV2(fmt.Sprintf("%.1f%%", res.Report.ByMethod[method])))
			}
		}
	}

	message += "\n🔁 *Retraining:*\n"
	switch {
	case !res.Triggered:
		message += fmt.Sprintf("• Not needed: %s\n", escapeMarkdownV2(res.Reason))
	case res.Updated:
		message += "• Models updated ✅\n"
	default:
		message += fmt.Sprintf("• Failed ❌: %s\n", escapeMarkdownV2(res.Reason))
	}
	return message
}

// Status is a cycle snapshot for the periodic status message.
type Status struct {
	At                 time.Time
	Price              float64
	Phase              models.CyclePhase
	Timers             cycle.Timers
	Stats              cycle.Stats
	ProjectedPeakPrice float64
	Future             []cycle.ProjectedCycle
	History            *cycle.HistoryAggregate
}

// SendStatus sends the full cycle snapshot: timers, progress, projected
// cycles, and historical aggregates.
func (c *Client) SendStatus(st Status) error {
	return c.sendMarkdownV2(c.formatStatus(st))
}

func (c *Client) formatStatus(st Status) string {
	message := "📊 *BTC Cycle Status*\n\n"
	if st.Price > 0 {
		message += fmt.Sprintf("💰 Price: `%s`\n", usd(st.Price))
	}
	message += fmt.Sprintf("%s Phase: %s\n", emojiFor(st.Phase), escapeMarkdownV2(string(st.Phase)))

	message += "\n⏰ *Timers:*\n"
	message += fmt.Sprintf("• Halving: `%d` days \\(%s\\)\n",
		st.Timers.DaysUntilHalving, escapeMarkdownV2(st.Timers.NextHalving.Format("2006-01-02")))
	message += fmt.Sprintf("• Projected peak: `%d` days\n", st.Timers.DaysUntilPeak)
	message += fmt.Sprintf("• Projected bottom: `%d` days\n", st.Timers.DaysUntilBottom)

	message += "\n📈 *Cycle:*\n"
	message += fmt.Sprintf("• Day `%d`, progress `%s`\n", st.Stats.DaysSinceBottom, pct(st.Stats.ProgressPct))
	message += fmt.Sprintf("• ROI from bottom: `%s`\n", pct(st.Stats.ROIFromBottomPct))
	message += fmt.Sprintf("• To projected peak: `%s`\n", pct(st.Stats.ToPeakPct))
	if st.ProjectedPeakPrice > 0 {
		message += fmt.Sprintf("• Projected peak price: `%s`\n", usd(st.ProjectedPeakPrice))
	}

	if len(st.Future) > 0 {
		message += "\n🔮 *Next cycles:*\n"
		for _, fc := range st.Future {
			message += fmt.Sprintf("• Cycle %d: peak %s\n",
				fc.Number, escapeMarkdownV2(fc.Peak.Format("2006-01-02")))
		}
	}

	if st.History != nil && st.History.Cycles > 0 {
		message += "\n📜 *History:*\n"
		message += fmt.Sprintf("• Mean length: `%d` days\n", int(st.History.MeanLengthDays))
		message += fmt.Sprintf("• Mean growth: `%s`\n", escapeMarkdownV2(fmt.Sprintf("%.1fx", st.History.MeanRatio)))
	}

	message += fmt.Sprintf("\n🕐 %s\n", escapeMarkdownV2(st.At.Format("2006-01-02 15:04")))
	return message
}
