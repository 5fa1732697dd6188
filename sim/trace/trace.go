package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every routing draw.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords bounds memory on long runs; 0 keeps every record.
	// Counts in the summary stay exact once the cap is hit.
	MaxRecords int
}

// SimulationTrace collects routing records during one simulation run.
// Not safe for concurrent use; each replicate owns its own trace.
type SimulationTrace struct {
	Config   TraceConfig
	Routings []RoutingRecord

	edges   map[string]map[string]int // from → to → count; "" target = exit
	dropped int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Routings: make([]RoutingRecord, 0),
		edges:    make(map[string]map[string]int),
	}
}

// RecordRouting appends a routing record. A trace at TraceLevelNone records nothing.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	if st.Config.Level != TraceLevelDecisions {
		return
	}
	to := record.To
	if record.Exit {
		to = ""
	}
	out, ok := st.edges[record.From]
	if !ok {
		out = make(map[string]int)
		st.edges[record.From] = out
	}
	out[to]++

	if st.Config.MaxRecords > 0 && len(st.Routings) >= st.Config.MaxRecords {
		st.dropped++
		return
	}
	st.Routings = append(st.Routings, record)
}

// Dropped returns how many records were counted but not kept because of MaxRecords.
func (st *SimulationTrace) Dropped() int {
	return st.dropped
}
