package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Sampler draws exponential inter-arrival and service durations from a
// simulation-owned random source.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler wraps rng. The sampler never touches the global math/rand source.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		panic("NewSampler: rng must not be nil")
	}
	return &Sampler{rng: rng}
}

// SampleInterarrival returns an exponential inter-arrival time with mean 1/rate.
func (s *Sampler) SampleInterarrival(rate float64) (float64, error) {
	if !(rate > 0) {
		return 0, &InvalidRateError{What: "arrival", Rate: rate}
	}
	return s.rng.ExpFloat64() / rate, nil
}

// SampleService returns an exponential service time with mean 1/rate.
func (s *Sampler) SampleService(rate float64) (float64, error) {
	if !(rate > 0) {
		return 0, &InvalidRateError{What: "service", Rate: rate}
	}
	return s.rng.ExpFloat64() / rate, nil
}

// Distribution generates strictly positive service durations.
type Distribution interface {
	// Sample returns a duration > 0.
	Sample(rng *rand.Rand) float64
	// Mean is the expected duration.
	Mean() float64
	// SCV is the squared coefficient of variation (1 for exponential, 0 for deterministic).
	SCV() float64
	Name() string
}

// ExponentialDistribution is the Markovian service law assumed by the closed-form analysis.
type ExponentialDistribution struct {
	rate float64
}

func (d *ExponentialDistribution) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() / d.rate
}

func (d *ExponentialDistribution) Mean() float64 { return 1 / d.rate }
func (d *ExponentialDistribution) SCV() float64  { return 1 }
func (d *ExponentialDistribution) Name() string  { return DistExponential }

// DeterministicDistribution always returns 1/rate.
type DeterministicDistribution struct {
	value float64
}

func (d *DeterministicDistribution) Sample(_ *rand.Rand) float64 { return d.value }
func (d *DeterministicDistribution) Mean() float64               { return d.value }
func (d *DeterministicDistribution) SCV() float64                { return 0 }
func (d *DeterministicDistribution) Name() string                { return DistDeterministic }

// ErlangDistribution is the sum of k exponential phases, each with rate k*rate,
// so the mean stays 1/rate and the SCV is 1/k.
type ErlangDistribution struct {
	k         int
	phaseRate float64
}

func (d *ErlangDistribution) Sample(rng *rand.Rand) float64 {
	// Sum of phases as -ln(prod U)/rate would underflow for large k.
	total := 0.0
	for i := 0; i < d.k; i++ {
		total += rng.ExpFloat64()
	}
	return total / d.phaseRate
}

func (d *ErlangDistribution) Mean() float64 { return float64(d.k) / d.phaseRate }
func (d *ErlangDistribution) SCV() float64  { return 1 / float64(d.k) }
func (d *ErlangDistribution) Name() string  { return DistErlang }

// Recognized service distribution names.
const (
	DistExponential   = "exponential"
	DistDeterministic = "deterministic"
	DistErlang        = "erlang"
)

// ValidDistributions is the set of recognized distribution names ("" means exponential).
var ValidDistributions = map[string]bool{"": true, DistExponential: true, DistDeterministic: true, DistErlang: true}

// NewDistribution builds a service-time distribution with mean 1/rate.
// shape is only read for "erlang" and must be >= 1 there.
func NewDistribution(name string, rate float64, shape int) (Distribution, error) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, &InvalidRateError{What: "service", Rate: rate}
	}
	switch name {
	case "", DistExponential:
		return &ExponentialDistribution{rate: rate}, nil
	case DistDeterministic:
		return &DeterministicDistribution{value: 1 / rate}, nil
	case DistErlang:
		if shape < 1 {
			return nil, fmt.Errorf("erlang shape must be >= 1, got %d", shape)
		}
		return &ErlangDistribution{k: shape, phaseRate: float64(shape) * rate}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %q", name)
	}
}
