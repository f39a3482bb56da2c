package distribution

import "testing"

func meanAndCV(samples []float64) (mean, cv float64) {
	n := float64(len(samples))
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean = sum / n
	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= n
	cv = sqrt(variance) / mean
	return
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 50; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func TestGammaMean(t *testing.T) {
	const rate = 20.0
	g := NewGamma(rate, 0.5)
	samples := make([]float64, 100000)
	for i := range samples {
		samples[i] = g.Next()
	}
	mean, _ := meanAndCV(samples)
	want := 1000.0 / rate
	if diff := (mean - want) / want; diff > 0.01 || diff < -0.01 {
		t.Errorf("mean = %v, want within 1%% of %v", mean, want)
	}
}

func TestGammaCV(t *testing.T) {
	const rate = 20.0
	const cv = 0.75
	g := NewGamma(rate, cv)
	samples := make([]float64, 100000)
	for i := range samples {
		samples[i] = g.Next()
	}
	_, gotCV := meanAndCV(samples)
	if diff := (gotCV - cv) / cv; diff > 0.01 || diff < -0.01 {
		t.Errorf("cv = %v, want within 1%% of %v", gotCV, cv)
	}
}
