package sim

import (
	"fmt"
	"math"
)

// QueueMetrics holds the steady-state measures of a single station.
type QueueMetrics struct {
	Lambda   float64 `json:"lambda"`
	Mu       float64 `json:"mu"`
	Servers  int     `json:"servers"`
	Rho      float64 `json:"rho"`       // per-server utilization λ/(cμ)
	P0       float64 `json:"p0"`        // probability of an empty station
	ProbWait float64 `json:"prob_wait"` // probability an arrival has to queue (Erlang C)
	Lq       float64 `json:"lq"`
	Wq       float64 `json:"wq"`
	L        float64 `json:"l"`
	W        float64 `json:"w"`
	// Approximate is set when service is not exponential and the measures come from
	// the Allen–Cunneen correction rather than an exact formula.
	Approximate bool `json:"approximate"`
}

func checkRates(lambda, mu float64, servers int) error {
	if math.IsNaN(lambda) || lambda < 0 || math.IsInf(lambda, 0) {
		return &InvalidRateError{What: "arrival", Rate: lambda}
	}
	if !(mu > 0) || math.IsInf(mu, 0) {
		return &InvalidRateError{What: "service", Rate: mu}
	}
	if servers < 1 {
		return fmt.Errorf("servers must be >= 1, got %d", servers)
	}
	if rho := lambda / (mu * float64(servers)); rho >= 1 {
		return &UnstableSystemError{Rho: rho}
	}
	return nil
}

// MM1 returns the exact M/M/1 measures: ρ = λ/μ, Lq = ρ²/(1−ρ), Wq = ρ/(μ(1−ρ)).
// Returns *UnstableSystemError when ρ >= 1.
func MM1(lambda, mu float64) (QueueMetrics, error) {
	if err := checkRates(lambda, mu, 1); err != nil {
		return QueueMetrics{}, err
	}
	rho := lambda / mu
	return QueueMetrics{
		Lambda:   lambda,
		Mu:       mu,
		Servers:  1,
		Rho:      rho,
		P0:       1 - rho,
		ProbWait: rho,
		Lq:       rho * rho / (1 - rho),
		Wq:       rho / (mu * (1 - rho)),
		L:        rho / (1 - rho),
		W:        1 / (mu - lambda),
	}, nil
}

// MMc returns the exact M/M/c measures. P0 is summed in log space and the waiting
// probability comes from the Erlang-B recursion, so neither factorials nor powers of
// the offered load are ever formed; large server counts do not overflow.
func MMc(lambda, mu float64, servers int) (QueueMetrics, error) {
	if err := checkRates(lambda, mu, servers); err != nil {
		return QueueMetrics{}, err
	}
	c := float64(servers)
	a := lambda / mu
	rho := a / c
	m := QueueMetrics{Lambda: lambda, Mu: mu, Servers: servers, Rho: rho}
	if lambda == 0 {
		m.P0 = 1
		m.W = 1 / mu
		return m, nil
	}

	m.P0 = math.Exp(-logNormalizer(a, servers, rho))
	m.ProbWait = ErlangC(servers, a)
	m.Lq = m.ProbWait * rho / (1 - rho)
	m.Wq = m.Lq / lambda
	m.W = m.Wq + 1/mu
	m.L = lambda * m.W
	return m, nil
}

// logNormalizer returns ln(Σ_{k<c} a^k/k! + a^c/(c!(1−ρ))), the log of 1/P0.
func logNormalizer(a float64, servers int, rho float64) float64 {
	logA := math.Log(a)
	terms := make([]float64, 0, servers+1)
	for k := 0; k < servers; k++ {
		lg, _ := math.Lgamma(float64(k + 1))
		terms = append(terms, float64(k)*logA-lg)
	}
	lg, _ := math.Lgamma(float64(servers + 1))
	terms = append(terms, float64(servers)*logA-lg-math.Log(1-rho))
	return logSumExp(terms)
}

func logSumExp(xs []float64) float64 {
	maxX := math.Inf(-1)
	for _, x := range xs {
		if x > maxX {
			maxX = x
		}
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - maxX)
	}
	return maxX + math.Log(sum)
}

// ErlangB returns the blocking probability of an M/M/c/c loss system with offered load a = λ/μ,
// via B(0)=1, B(k) = a·B(k−1) / (k + a·B(k−1)).
func ErlangB(servers int, a float64) float64 {
	b := 1.0
	for k := 1; k <= servers; k++ {
		b = a * b / (float64(k) + a*b)
	}
	return b
}

// ErlangC returns the probability that an arrival waits in an M/M/c queue with offered
// load a = λ/μ < c.
func ErlangC(servers int, a float64) float64 {
	b := ErlangB(servers, a)
	rho := a / float64(servers)
	return b / (1 - rho*(1-b))
}

// GeneralService approximates an M/G/c station whose service has squared coefficient of
// variation scv by scaling the M/M/c queueing delay with (1+scv)/2 (Allen–Cunneen).
// For one server this is the exact Pollaczek–Khinchine result; for scv = 1 it is exact M/M/c.
func GeneralService(lambda, mu float64, servers int, scv float64) (QueueMetrics, error) {
	if scv < 0 || math.IsNaN(scv) {
		return QueueMetrics{}, fmt.Errorf("squared coefficient of variation must be >= 0, got %g", scv)
	}
	m, err := MMc(lambda, mu, servers)
	if err != nil || scv == 1 {
		return m, err
	}
	factor := (1 + scv) / 2
	m.Lq *= factor
	m.Wq *= factor
	m.W = m.Wq + 1/mu
	m.L = lambda * m.W
	m.Approximate = servers > 1
	return m, nil
}

// AnalyzeStation picks the exact formula for exponential service and the approximation otherwise.
func AnalyzeStation(lambda, mu float64, servers int, scv float64) (QueueMetrics, error) {
	switch {
	case scv != 1:
		return GeneralService(lambda, mu, servers, scv)
	case servers == 1:
		return MM1(lambda, mu)
	default:
		return MMc(lambda, mu, servers)
	}
}
