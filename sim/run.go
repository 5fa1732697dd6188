package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/queuesim/queuesim/sim/trace"
)

// RunConfig is the input of Run.
type RunConfig struct {
	ArrivalRates map[StationID]float64 // external λ per source
	Horizon      float64               // +Inf requires MaxCustomers > 0
	Seed         int64
	MaxCustomers int
	// AllowUnstable acknowledges that some station has ρ >= 1; without it Run refuses
	// to start on an unstable network.
	AllowUnstable   bool
	TraceLevel      trace.TraceLevel
	TraceMaxRecords int
	Observer        Observer
}

// Run analyzes topo in closed form, refuses unstable configurations unless acknowledged,
// simulates it once and returns the combined report.
func Run(topo *Topology, cfg RunConfig) (*SimulationReport, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology must not be nil")
	}
	if !trace.IsValidTraceLevel(string(cfg.TraceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q", cfg.TraceLevel)
	}
	analysis, err := AnalyzeNetwork(topo, cfg.ArrivalRates)
	if err != nil {
		return nil, err
	}
	if !analysis.Stable {
		if !cfg.AllowUnstable {
			return nil, analysis.Err()
		}
		logrus.Warnf("running unstable network (stations %v have rho >= 1); queues will grow without bound", analysis.Unstable)
	}

	var st *trace.SimulationTrace
	if cfg.TraceLevel == trace.TraceLevelDecisions {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.TraceLevel, MaxRecords: cfg.TraceMaxRecords})
	}

	s, err := NewSimulator(topo, SimConfig{
		ArrivalRates: cfg.ArrivalRates,
		Horizon:      cfg.Horizon,
		Key:          NewSimulationKey(cfg.Seed),
		MaxCustomers: cfg.MaxCustomers,
		Observer:     cfg.Observer,
		Trace:        st,
	})
	if err != nil {
		return nil, err
	}
	summary, err := s.Run()
	if err != nil {
		return nil, err
	}

	report := NewSimulationReport(cfg.Seed, summary, analysis)
	if st != nil {
		report.Trace = trace.Summarize(st)
	}
	return report, nil
}
