package monitor

import "math"

// AccuracyStats keeps a streaming mean and deviation of realized forecast
// accuracies using Welford's update, so the watch loop can report drift
// without replaying the full history.
type AccuracyStats struct {
	Count int
	Mean  float64
	m2    float64
}

func (s *AccuracyStats) Update(value float64) {
	s.Count++
	delta := value - s.Mean
	s.Mean += delta / float64(s.Count)
	s.m2 += delta * (value - s.Mean)
}

// Sigma is the sample standard deviation, zero below two observations.
func (s *AccuracyStats) Sigma() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.Count-1))
}
