package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// StationAnalysis is the closed-form view of one station of a Jackson network.
type StationAnalysis struct {
	ID           StationID     `json:"id"`
	Role         Role          `json:"role"`
	ExternalRate float64       `json:"external_rate"` // γ
	ArrivalRate  float64       `json:"arrival_rate"`  // λ from flow balance
	ServiceRate  float64       `json:"service_rate"`
	Servers      int           `json:"servers"`
	Rho          float64       `json:"rho"`
	Stable       bool          `json:"stable"`
	Metrics      *QueueMetrics `json:"metrics,omitempty"` // nil when unstable or absorbing
}

// NetworkAnalysis is the closed-form analysis of a whole network.
type NetworkAnalysis struct {
	Stations []StationAnalysis `json:"stations"`
	Stable   bool              `json:"stable"`
	Unstable []StationID       `json:"unstable,omitempty"`
}

// Station returns the analysis of id.
func (na *NetworkAnalysis) Station(id StationID) (StationAnalysis, bool) {
	for _, s := range na.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return StationAnalysis{}, false
}

// Err returns an *UnstableSystemError for the first unstable station, or nil.
func (na *NetworkAnalysis) Err() error {
	for _, s := range na.Stations {
		if !s.Stable {
			return &UnstableSystemError{Station: s.ID, Rho: s.Rho}
		}
	}
	return nil
}

// SolveFlowBalance solves λⱼ = γⱼ + Σᵢ λᵢ·pᵢⱼ for every station, i.e. (I − Pᵀ)λ = γ.
// external maps source stations to their external arrival rate γ.
func SolveFlowBalance(topo *Topology, external map[StationID]float64) (map[StationID]float64, error) {
	specs := topo.Stations()
	n := len(specs)
	gamma := make([]float64, n)
	for id, rate := range external {
		spec, ok := topo.Station(id)
		if !ok {
			return nil, &TopologyError{Station: id, Reason: "arrival rate given for an undefined station"}
		}
		if spec.Role != RoleSource {
			return nil, &TopologyError{Station: id, Reason: "arrival rate given for a non-source station"}
		}
		if math.IsNaN(rate) || rate < 0 || math.IsInf(rate, 0) {
			return nil, &InvalidRateError{What: fmt.Sprintf("arrival (source %q)", id), Rate: rate}
		}
		gamma[topo.index[id]] = rate
	}

	p := topo.routingMatrix()
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -p[j][i]
			if i == j {
				v += 1
			}
			a.Set(i, j, v)
		}
	}
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, gamma)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, &TopologyError{Reason: fmt.Sprintf("flow balance has no solution: %v", err)}
		}
		logrus.Warnf("flow balance is ill-conditioned (condition number %g); rates may be inaccurate", float64(cond))
	}

	rates := make(map[StationID]float64, n)
	for i, spec := range specs {
		v := x.AtVec(i)
		if v < 0 && v > -1e-12 {
			v = 0
		}
		rates[spec.ID] = v
	}
	return rates, nil
}

// AnalyzeNetwork computes effective arrival rates by flow balance and the steady-state
// measures of every stable station. Unstable stations are flagged, not returned as an
// error; use Err to turn the result into one.
func AnalyzeNetwork(topo *Topology, external map[StationID]float64) (*NetworkAnalysis, error) {
	rates, err := SolveFlowBalance(topo, external)
	if err != nil {
		return nil, err
	}
	na := &NetworkAnalysis{Stable: true}
	for _, spec := range topo.Stations() {
		sa := StationAnalysis{
			ID:           spec.ID,
			Role:         spec.Role,
			ExternalRate: external[spec.ID],
			ArrivalRate:  rates[spec.ID],
			ServiceRate:  spec.ServiceRate,
			Servers:      spec.Servers,
			Stable:       true,
		}
		if spec.absorbing() {
			sa.Servers = 0
			na.Stations = append(na.Stations, sa)
			continue
		}
		sa.Rho = sa.ArrivalRate / (spec.ServiceRate * float64(spec.Servers))
		if sa.Rho >= 1 {
			sa.Stable = false
			na.Stable = false
			na.Unstable = append(na.Unstable, spec.ID)
			na.Stations = append(na.Stations, sa)
			continue
		}
		dist, err := NewDistribution(spec.Distribution, spec.ServiceRate, spec.Shape)
		if err != nil {
			return nil, fmt.Errorf("station %q: %w", spec.ID, err)
		}
		qm, err := AnalyzeStation(sa.ArrivalRate, spec.ServiceRate, spec.Servers, dist.SCV())
		if err != nil {
			return nil, fmt.Errorf("station %q: %w", spec.ID, err)
		}
		sa.Metrics = &qm
		na.Stations = append(na.Stations, sa)
	}
	return na, nil
}
