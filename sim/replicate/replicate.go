// Package replicate runs independent replicates of one network concurrently and
// aggregates them into confidence intervals.
//
// Each replicate owns its own simulator, RNG, event queue, stations and metrics;
// the only shared value is the read-only Topology. Aggregation starts after every
// replicate has finished.
package replicate

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/queuesim/queuesim/sim"
)

// DefaultConfidence is the confidence level used when Config.Confidence is unset.
const DefaultConfidence = 0.95

// Config describes a batch of replicates.
type Config struct {
	Run        sim.RunConfig // Run.Seed is the base seed; Run.Observer must be nil
	Replicates int
	Workers    int     // concurrent replicates, 0 = runtime.NumCPU()
	Confidence float64 // two-sided level in (0,1), 0 = DefaultConfidence
}

// Estimate summarizes one measure across replicates.
type Estimate struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	HalfWidth float64 `json:"half_width"` // Student-t confidence half-width of the mean
	N         int     `json:"n"`
}

// Contains reports whether v lies inside the confidence interval.
func (e Estimate) Contains(v float64) bool {
	return math.Abs(v-e.Mean) <= e.HalfWidth
}

// StationEstimate aggregates one station across replicates.
type StationEstimate struct {
	ID              sim.StationID `json:"id"`
	MeanWait        Estimate      `json:"mean_wait"`
	MeanSystemTime  Estimate      `json:"mean_system_time"`
	MeanQueueLength Estimate      `json:"mean_queue_length"`
	MeanInSystem    Estimate      `json:"mean_in_system"`
	Utilization     Estimate      `json:"utilization"`
	Throughput      Estimate      `json:"throughput"`
}

// Result is the aggregate of a batch of replicates.
type Result struct {
	Confidence  float64                `json:"confidence"`
	Seeds       []int64                `json:"seeds"`
	Stations    []StationEstimate      `json:"per_station"`
	MeanSojourn Estimate               `json:"mean_sojourn"`
	Theoretical []sim.TheoreticalStats `json:"theoretical"`
	Stable      bool                   `json:"stable"`

	Reports []*sim.SimulationReport `json:"-"` // one per replicate, in seed order
}

// Run executes cfg.Replicates independent simulations of topo on a bounded worker pool.
// It fails if any replicate fails; the error of the lowest-numbered failing replicate is returned.
func Run(topo *sim.Topology, cfg Config) (*Result, error) {
	if cfg.Replicates < 1 {
		return nil, fmt.Errorf("replicates must be >= 1, got %d", cfg.Replicates)
	}
	if cfg.Run.Observer != nil {
		return nil, fmt.Errorf("observers are not supported across concurrent replicates")
	}
	conf := cfg.Confidence
	if conf == 0 {
		conf = DefaultConfidence
	}
	if !(conf > 0 && conf < 1) {
		return nil, fmt.Errorf("confidence must be in (0,1), got %g", conf)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, cfg.Replicates)

	// Fail fast on configuration problems before spawning anything.
	analysis, err := sim.AnalyzeNetwork(topo, cfg.Run.ArrivalRates)
	if err != nil {
		return nil, err
	}
	if !analysis.Stable && !cfg.Run.AllowUnstable {
		return nil, analysis.Err()
	}

	seeds := make([]int64, cfg.Replicates)
	for i := range seeds {
		seeds[i] = int64(sim.ReplicateKey(cfg.Run.Seed, i))
	}
	reports := make([]*sim.SimulationReport, cfg.Replicates)
	errs := make([]error, cfg.Replicates)

	logrus.Infof("Running %d replicates on %d workers", cfg.Replicates, workers)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := range seeds {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rc := cfg.Run
			rc.Seed = seeds[i]
			reports[i], errs[i] = sim.Run(topo, rc)
			logrus.Debugf("replicate %d (seed %d) finished", i, seeds[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("replicate %d (seed %d): %w", i, seeds[i], err)
		}
	}
	return aggregate(reports, seeds, conf, analysis), nil
}

func aggregate(reports []*sim.SimulationReport, seeds []int64, conf float64, analysis *sim.NetworkAnalysis) *Result {
	res := &Result{
		Confidence:  conf,
		Seeds:       seeds,
		Theoretical: sim.TheoreticalFromAnalysis(analysis),
		Stable:      analysis.Stable,
		Reports:     reports,
	}
	collect := func(f func(*sim.SimulationReport) float64) Estimate {
		xs := make([]float64, len(reports))
		for i, r := range reports {
			xs[i] = f(r)
		}
		return Summarize(xs, conf)
	}

	res.MeanSojourn = collect(func(r *sim.SimulationReport) float64 { return r.MeanSojourn })
	for idx, st := range reports[0].PerStation {
		at := func(f func(sim.StationStats) float64) Estimate {
			return collect(func(r *sim.SimulationReport) float64 { return f(r.PerStation[idx]) })
		}
		res.Stations = append(res.Stations, StationEstimate{
			ID:              st.ID,
			MeanWait:        at(func(s sim.StationStats) float64 { return s.MeanWait }),
			MeanSystemTime:  at(func(s sim.StationStats) float64 { return s.MeanSystemTime }),
			MeanQueueLength: at(func(s sim.StationStats) float64 { return s.MeanQueueLength }),
			MeanInSystem:    at(func(s sim.StationStats) float64 { return s.MeanInSystem }),
			Utilization:     at(func(s sim.StationStats) float64 { return s.Utilization }),
			Throughput:      at(func(s sim.StationStats) float64 { return s.Throughput }),
		})
	}
	return res
}

// Summarize computes the mean, sample standard deviation and Student-t confidence
// half-width of xs. With fewer than two samples the spread is reported as zero.
func Summarize(xs []float64, conf float64) Estimate {
	e := Estimate{N: len(xs)}
	if len(xs) == 0 {
		return e
	}
	if len(xs) == 1 {
		e.Mean = xs[0]
		return e
	}
	e.Mean, e.StdDev = stat.MeanStdDev(xs, nil)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(len(xs) - 1)}.Quantile(0.5 + conf/2)
	e.HalfWidth = t * stat.StdErr(e.StdDev, float64(len(xs)))
	return e
}

// Print writes a header followed by the indented JSON aggregate.
func (r *Result) Print(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding replicate report: %w", err)
	}
	if _, err := fmt.Fprintln(w, "=== Replicate Report ==="); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// SaveResults writes the JSON aggregate to path.
func (r *Result) SaveResults(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding replicate report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing replicate report %s: %w", path, err)
	}
	logrus.Debugf("Successfully wrote replicate report to '%s'", path)
	return nil
}
