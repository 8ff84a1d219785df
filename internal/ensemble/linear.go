package ensemble

import "math"

// linearModel is a least-squares regressor fit by batch gradient descent.
// The target is standardized during training so one learning rate works
// across price scales; predictions are mapped back on the way out.
type linearModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	YMean   float64   `json:"y_mean"`
	YStd    float64   `json:"y_std"`
}

func trainLinear(X [][]float64, y []float64, rate float64, iterations int) *linearModel {
	n := len(y)
	cols := len(X[0])

	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	yStd := 0.0
	for _, v := range y {
		d := v - yMean
		yStd += d * d
	}
	yStd = math.Sqrt(yStd / float64(n))
	if yStd == 0 {
		yStd = 1
	}

	scaled := make([]float64, n)
	for i, v := range y {
		scaled[i] = (v - yMean) / yStd
	}

	weights := make([]float64, cols)
	bias := 0.0
	gradW := make([]float64, cols)

	for it := 0; it < iterations; it++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i, row := range X {
			pred := bias
			for j, v := range row {
				pred += weights[j] * v
			}
			err := pred - scaled[i]
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}

		step := 2 * rate / float64(n)
		for j := range weights {
			weights[j] -= step * gradW[j]
		}
		bias -= step * gradB
	}

	return &linearModel{Weights: weights, Bias: bias, YMean: yMean, YStd: yStd}
}

func (m *linearModel) predict(x []float64) float64 {
	out := m.Bias
	for j, v := range x {
		out += m.Weights[j] * v
	}
	return out*m.YStd + m.YMean
}
