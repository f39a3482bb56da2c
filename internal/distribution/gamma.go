// Package distribution generates inter-arrival intervals for the open-loop
// synthetic dispatch mode.
package distribution

import (
	"math"
	"math/rand"
	"sync"
)

// Gamma draws inter-arrival intervals, in milliseconds, from a Gamma
// distribution whose mean matches the target request rate and whose shape
// is controlled by a coefficient of variation.
type Gamma struct {
	mu    sync.Mutex
	rng   *rand.Rand
	shape float64
	scale float64
}

// NewGamma builds a Gamma interval source for the given request rate (in
// requests per second) and coefficient of variation. cv=1 reproduces a
// Poisson process; cv<1 is more regular, cv>1 burstier.
func NewGamma(rateRPS, cv float64) *Gamma {
	mean := 1000.0 / rateRPS
	return &Gamma{
		rng:   rand.New(rand.NewSource(rand.Int63())),
		shape: 1.0 / (cv * cv),
		scale: mean * cv * cv,
	}
}

// Next returns the next sampled inter-arrival interval in milliseconds.
func (g *Gamma) Next() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sample() * g.scale
}

// sample draws a standard Gamma(shape, 1) variate via Marsaglia-Tsang.
func (g *Gamma) sample() float64 {
	if g.shape < 1 {
		u := g.rng.Float64()
		return g.sampleBoosted() * math.Pow(u, 1.0/g.shape)
	}
	return g.sampleBoosted()
}

// sampleBoosted implements Marsaglia-Tsang for shape >= 1.
func (g *Gamma) sampleBoosted() float64 {
	shape := g.shape
	if shape < 1 {
		shape += 1
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = g.rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := g.rng.Float64()
		x2 := x * x
		if u < 1.0-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
