package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveFlowBalance_Tandem(t *testing.T) {
	// GIVEN source -> sink with γ=2
	topo := tandem(t, 4, 3)

	// WHEN flow balance is solved
	rates, err := SolveFlowBalance(topo, map[StationID]float64{"in": 2})

	// THEN every station sees the full stream
	require.NoError(t, err)
	assert.InDelta(t, 2.0, rates["in"], 1e-12)
	assert.InDelta(t, 2.0, rates["out"], 1e-12)
}

func TestSolveFlowBalance_SplitAndMerge(t *testing.T) {
	// GIVEN in splits 0.3/0.7 to a and b, both merging into done
	b := NewTopologyBuilder()
	require.NoError(t, b.AddStation("in", 10, 1, RoleSource))
	require.NoError(t, b.AddStation("a", 5, 1, RoleQueue))
	require.NoError(t, b.AddStation("b", 5, 1, RoleQueue))
	require.NoError(t, b.AddStation("done", 0, 0, RoleSink))
	require.NoError(t, b.AddRoute("in", "a", 0.3))
	require.NoError(t, b.AddRoute("in", "b", 0.7))
	require.NoError(t, b.AddRoute("a", "done", 1))
	require.NoError(t, b.AddRoute("b", "done", 1))
	topo, err := b.Build()
	require.NoError(t, err)

	rates, err := SolveFlowBalance(topo, map[StationID]float64{"in": 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.2, rates["a"], 1e-12)
	assert.InDelta(t, 2.8, rates["b"], 1e-12)
	assert.InDelta(t, 4.0, rates["done"], 1e-12)
}

// reworkNetwork has station w revisiting itself with probability 0.8.
func reworkNetwork(t *testing.T, mu float64) *Topology {
	t.Helper()
	b := NewTopologyBuilder()
	require.NoError(t, b.AddStation("w", mu, 1, RoleSource))
	require.NoError(t, b.AddStation("done", 0, 0, RoleSink))
	require.NoError(t, b.AddRoute("w", "w", 0.8))
	require.NoError(t, b.AddRoute("w", "done", 0.2))
	topo, err := b.Build()
	require.NoError(t, err)
	return topo
}

func TestAnalyzeNetwork_ReworkLoopIsUnstable(t *testing.T) {
	// GIVEN γ=1 into a station that sends 80% back to itself, μ=4
	topo := reworkNetwork(t, 4)

	// WHEN analyzed
	na, err := AnalyzeNetwork(topo, map[StationID]float64{"w": 1})
	require.NoError(t, err)

	// THEN λ = 1/(1−0.8) = 5 > μ and the station is flagged
	w, ok := na.Station("w")
	require.True(t, ok)
	assert.InDelta(t, 5.0, w.ArrivalRate, 1e-9)
	assert.InDelta(t, 1.25, w.Rho, 1e-9)
	assert.False(t, w.Stable)
	assert.Nil(t, w.Metrics)
	assert.False(t, na.Stable)
	assert.Equal(t, []StationID{"w"}, na.Unstable)

	var unstable *UnstableSystemError
	require.True(t, errors.As(na.Err(), &unstable))
	assert.Equal(t, StationID("w"), unstable.Station)
}

func TestAnalyzeNetwork_ReworkLoopStableWithFastServer(t *testing.T) {
	topo := reworkNetwork(t, 10)

	na, err := AnalyzeNetwork(topo, map[StationID]float64{"w": 1})
	require.NoError(t, err)
	assert.True(t, na.Stable)
	assert.NoError(t, na.Err())

	w, _ := na.Station("w")
	require.NotNil(t, w.Metrics)
	assert.InDelta(t, 0.5, w.Rho, 1e-9)
	// M/M/1 at λ=5, μ=10
	assert.InDelta(t, 0.1, w.Metrics.Wq, 1e-9)

	done, _ := na.Station("done")
	assert.Equal(t, 0, done.Servers)
	assert.True(t, done.Stable)
	assert.InDelta(t, 1.0, done.ArrivalRate, 1e-9)
}

func TestSolveFlowBalance_RejectsBadExternalRates(t *testing.T) {
	topo := tandem(t, 4, 3)

	_, err := SolveFlowBalance(topo, map[StationID]float64{"ghost": 1})
	var topoErr *TopologyError
	assert.True(t, errors.As(err, &topoErr))

	_, err = SolveFlowBalance(topo, map[StationID]float64{"out": 1})
	assert.True(t, errors.As(err, &topoErr), "rate on a sink")

	_, err = SolveFlowBalance(topo, map[StationID]float64{"in": -1})
	var rateErr *InvalidRateError
	assert.True(t, errors.As(err, &rateErr))
}

func TestAnalyzeNetwork_NonExponentialServiceIsApproximated(t *testing.T) {
	b := NewTopologyBuilder()
	require.NoError(t, b.AddStationSpec(StationSpec{ID: "d", Role: RoleSource, ServiceRate: 2, Servers: 2, Distribution: DistDeterministic}))
	topo, err := b.Build()
	require.NoError(t, err)

	na, err := AnalyzeNetwork(topo, map[StationID]float64{"d": 3})
	require.NoError(t, err)
	d, _ := na.Station("d")
	require.NotNil(t, d.Metrics)
	assert.True(t, d.Metrics.Approximate)

	exact, err := MMc(3, 2, 2)
	require.NoError(t, err)
	assert.InDelta(t, exact.Wq/2, d.Metrics.Wq, 1e-12)
}
