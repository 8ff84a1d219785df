package ensemble

import "math"

// standardScaler centers features to zero mean and unit variance.
// Zero-variance columns keep a scale of 1 so they pass through centered.
type standardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func fitScaler(X [][]float64) *standardScaler {
	if len(X) == 0 {
		return &standardScaler{}
	}
	cols := len(X[0])
	mean := make([]float64, cols)
	std := make([]float64, cols)

	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(X))
	}

	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(X)))
		if std[j] == 0 {
			std[j] = 1
		}
	}

	return &standardScaler{Mean: mean, Std: std}
}

func (s *standardScaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

func (s *standardScaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.transform(row)
	}
	return out
}
