package trace

import "golang.org/x/exp/slices"

// ExitTarget is the key used in summaries for customers leaving the network.
const ExitTarget = "<exit>"

// EdgeFrequency is the observed share of draws from one station that went to a target.
type EdgeFrequency struct {
	To        string  `json:"to"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions int                        `json:"total_decisions"`
	Exits          int                        `json:"exits"`
	Edges          map[string][]EdgeFrequency `json:"edges"` // from → observed targets, sorted by name
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		Edges: make(map[string][]EdgeFrequency),
	}
	if st == nil {
		return summary
	}

	for from, targets := range st.edges {
		total := 0
		for _, n := range targets {
			total += n
		}
		freqs := make([]EdgeFrequency, 0, len(targets))
		for to, n := range targets {
			name := to
			if to == "" {
				name = ExitTarget
				summary.Exits += n
			}
			freqs = append(freqs, EdgeFrequency{To: name, Count: n, Frequency: float64(n) / float64(total)})
		}
		slices.SortFunc(freqs, func(a, b EdgeFrequency) int {
			switch {
			case a.To < b.To:
				return -1
			case a.To > b.To:
				return 1
			default:
				return 0
			}
		})
		summary.Edges[from] = freqs
		summary.TotalDecisions += total
	}
	return summary
}
