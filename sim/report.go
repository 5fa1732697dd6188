// Defines the SimulationReport handed to external reporting and plotting tools.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/queuesim/queuesim/sim/trace"
)

// TheoreticalStats is the closed-form counterpart of StationStats.
type TheoreticalStats struct {
	ID              StationID `json:"id"`
	MeanWait        float64   `json:"mean_wait"`
	MeanSystemTime  float64   `json:"mean_system_time"`
	MeanQueueLength float64   `json:"mean_queue_length"`
	MeanInSystem    float64   `json:"mean_in_system"`
	Utilization     float64   `json:"utilization"`
	Throughput      float64   `json:"throughput"`
	ArrivalRate     float64   `json:"arrival_rate"`
	Stable          bool      `json:"stable"`
	Approximate     bool      `json:"approximate,omitempty"`
}

// SimulationReport is the result of one run: simulated and closed-form measures side by side.
type SimulationReport struct {
	Seed        int64              `json:"seed"`
	PerStation  []StationStats     `json:"per_station"`
	Theoretical []TheoreticalStats `json:"theoretical"`
	Stable      bool               `json:"stable"`
	Unstable    []StationID        `json:"unstable,omitempty"`

	EndTime          float64 `json:"end_time"`
	ExternalArrivals int     `json:"external_arrivals"`
	Exited           int     `json:"exited"`
	InSystemAtCutoff int     `json:"in_system_at_cutoff"`
	MeanSojourn      float64 `json:"mean_sojourn"`
	SojournP50       float64 `json:"sojourn_p50"`
	SojournP95       float64 `json:"sojourn_p95"`
	SojournP99       float64 `json:"sojourn_p99"`
	EventsProcessed  int     `json:"events_processed"`

	Trace *trace.TraceSummary `json:"trace,omitempty"`
}

// NewSimulationReport combines a run summary with the network analysis.
func NewSimulationReport(seed int64, summary MetricsSummary, analysis *NetworkAnalysis) *SimulationReport {
	r := &SimulationReport{
		Seed:             seed,
		PerStation:       summary.Stations,
		Stable:           analysis.Stable,
		Unstable:         analysis.Unstable,
		EndTime:          summary.EndTime,
		ExternalArrivals: summary.ExternalArrivals,
		Exited:           summary.Exited,
		InSystemAtCutoff: summary.InSystemAtCutoff,
		MeanSojourn:      summary.MeanSojourn,
		SojournP50:       summary.SojournP50,
		SojournP95:       summary.SojournP95,
		SojournP99:       summary.SojournP99,
		EventsProcessed:  summary.EventsProcessed,
	}
	r.Theoretical = TheoreticalFromAnalysis(analysis)
	return r
}

// TheoreticalFromAnalysis flattens a network analysis into report rows. Unstable stations
// keep their utilization (ρ >= 1) and arrival rate; their queue measures are left at zero.
func TheoreticalFromAnalysis(analysis *NetworkAnalysis) []TheoreticalStats {
	out := make([]TheoreticalStats, 0, len(analysis.Stations))
	for _, sa := range analysis.Stations {
		ts := TheoreticalStats{
			ID:          sa.ID,
			Utilization: sa.Rho,
			Throughput:  sa.ArrivalRate,
			ArrivalRate: sa.ArrivalRate,
			Stable:      sa.Stable,
		}
		if sa.Stable && sa.Metrics == nil {
			// absorbing sink: customers leave on arrival
			out = append(out, ts)
			continue
		}
		if !sa.Stable {
			ts.Throughput = sa.ServiceRate * float64(sa.Servers)
		}
		if m := sa.Metrics; m != nil {
			ts.MeanWait = m.Wq
			ts.MeanSystemTime = m.W
			ts.MeanQueueLength = m.Lq
			ts.MeanInSystem = m.L
			ts.Approximate = m.Approximate
		}
		out = append(out, ts)
	}
	return out
}

// Station returns the simulated stats of id.
func (r *SimulationReport) Station(id StationID) (StationStats, bool) {
	for _, s := range r.PerStation {
		if s.ID == id {
			return s, true
		}
	}
	return StationStats{}, false
}

// TheoreticalStation returns the closed-form stats of id.
func (r *SimulationReport) TheoreticalStation(id StationID) (TheoreticalStats, bool) {
	for _, s := range r.Theoretical {
		if s.ID == id {
			return s, true
		}
	}
	return TheoreticalStats{}, false
}

// Print writes a header followed by the indented JSON report.
func (r *SimulationReport) Print(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if _, err := fmt.Fprintln(w, "=== Simulation Report ==="); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// SaveResults writes the JSON report to path.
func (r *SimulationReport) SaveResults(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	logrus.Debugf("Successfully wrote report to '%s'", path)
	return nil
}
