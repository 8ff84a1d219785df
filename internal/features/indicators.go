package features

// Rolling indicator helpers over plain close/volume slices. Series forms
// return a slice aligned to the input, with zeroes before the first index
// where the window is fully covered.

func rollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func macdSeries(values []float64) []float64 {
	e12 := emaSeries(values, 12)
	e26 := emaSeries(values, 26)
	out := make([]float64, len(values))
	for i := range out {
		out[i] = e12[i] - e26[i]
	}
	return out
}

// rsiSeries is defined from index period onward, the first index with a
// full window of deltas behind it.
func rsiSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}
	gains, losses := 0.0, 0.0
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
		if i > period {
			old := values[i-period] - values[i-period-1]
			if old > 0 {
				gains -= old
			} else {
				losses += old
			}
		}
		if i >= period {
			out[i] = rsiFromSums(gains, losses, period)
		}
	}
	return out
}

func rsiFromSums(gains, losses float64, period int) float64 {
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// SMA returns the simple moving average of the last period values,
// or 0 when the series is shorter than the period.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average over the whole series,
// seeded with its first value.
func EMA(values []float64, span int) float64 {
	if len(values) == 0 || span <= 0 {
		return 0
	}
	alpha := 2.0 / float64(span+1)
	ema := values[0]
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
	}
	return ema
}

// RSI returns the relative strength index over the last period deltas.
// Returns the neutral 50 when the series is too short or flat.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}
	gains, losses := 0.0, 0.0
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	return rsiFromSums(gains, losses, period)
}

// MACD returns the difference between the 12 and 26 period EMAs.
func MACD(values []float64) float64 {
	return EMA(values, 12) - EMA(values, 26)
}
