// Package sim provides the discrete-event engine for open queueing networks.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - customer.go: Customer lifecycle (entry → per-station waits → exit)
//   - event.go: Event types that drive the simulation (Arrival, Departure)
//   - simulator.go: The event loop, dispatch and routing
//
// # Architecture
//
// A network is declared with a TopologyBuilder (or loaded from YAML via
// NetworkConfig), frozen into a read-only Topology and executed by a Simulator.
// Run wraps the whole pipeline: closed-form analysis, instability check,
// simulation and the combined SimulationReport.
//
// Sub-packages:
//   - sim/replicate/: Concurrent independent replicates with confidence intervals
//   - sim/trace/: Routing decision trace recording
//
// # Closed Forms
//
// analytic.go holds the M/M/1 and M/M/c formulas (Erlang-B recursion with a
// log-space P0, safe for hundreds of servers) and the Allen–Cunneen correction
// for non-exponential service. flow_balance.go solves (I − Pᵀ)λ = γ for the
// effective arrival rate of every station.
//
// # Randomness
//
// Every random draw comes from a PartitionedRNG owned by one simulation: each
// source's arrival stream, each station's service stream and the router are
// independent streams derived from the SimulationKey. The same key and topology
// always reproduce the same report.
package sim
