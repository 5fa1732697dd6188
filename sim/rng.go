package sim

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical topology
// MUST produce bit-for-bit identical reports.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// ReplicateKey derives the key of the i-th independent replicate of a base seed.
// Replicate 0 uses the base seed itself so a single run and the first replicate agree.
func ReplicateKey(base int64, replicate int) SimulationKey {
	if replicate == 0 {
		return SimulationKey(base)
	}
	return SimulationKey(base ^ fnv1a64("replicate_"+strconv.Itoa(replicate)))
}

// === Subsystem Constants ===

const (
	// SubsystemRouter is the RNG subsystem for routing draws.
	SubsystemRouter = "router"
)

// SubsystemArrivals returns the subsystem name for the external arrival stream of a source.
func SubsystemArrivals(id StationID) string {
	return "arrivals_" + string(id)
}

// SubsystemService returns the subsystem name for a station's service times.
func SubsystemService(id StationID) string {
	return "service_" + string(id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so adding a station or a routing draw never perturbs another stream.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Each simulation owns exactly one.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
