package replicate

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuesim/queuesim/sim"
)

func mm1(t *testing.T, mu float64) *sim.Topology {
	t.Helper()
	b := sim.NewTopologyBuilder()
	require.NoError(t, b.AddStation("s", mu, 1, sim.RoleSource))
	topo, err := b.Build()
	require.NoError(t, err)
	return topo
}

func baseConfig() sim.RunConfig {
	return sim.RunConfig{
		ArrivalRates: map[sim.StationID]float64{"s": 2},
		Horizon:      2000,
		Seed:         7,
	}
}

func TestRun_AggregatesEveryReplicate(t *testing.T) {
	// GIVEN an M/M/1 station with λ=2, μ=3
	topo := mm1(t, 3)

	// WHEN 8 replicates run on 3 workers
	res, err := Run(topo, Config{Run: baseConfig(), Replicates: 8, Workers: 3})
	require.NoError(t, err)

	// THEN every replicate contributes and the seeds are distinct
	require.Len(t, res.Reports, 8)
	require.Len(t, res.Seeds, 8)
	seen := map[int64]bool{}
	for i, r := range res.Reports {
		require.NotNil(t, r)
		assert.Equal(t, res.Seeds[i], r.Seed)
		assert.False(t, seen[r.Seed], "duplicate seed %d", r.Seed)
		seen[r.Seed] = true
	}
	assert.Equal(t, DefaultConfidence, res.Confidence)

	// AND the aggregate brackets the closed-form values loosely
	require.Len(t, res.Stations, 1)
	st := res.Stations[0]
	assert.Equal(t, sim.StationID("s"), st.ID)
	assert.Equal(t, 8, st.MeanWait.N)
	assert.Greater(t, st.MeanWait.HalfWidth, 0.0)
	assert.InDelta(t, 2.0/3.0, st.MeanWait.Mean, 0.1)
	assert.InDelta(t, 2.0/3.0, st.Utilization.Mean, 0.03)
	assert.InDelta(t, 2.0, st.Throughput.Mean, 0.1)
	require.Len(t, res.Theoretical, 1)
	assert.InDelta(t, 2.0/3.0, res.Theoretical[0].MeanWait, 1e-12)
}

func TestRun_FirstReplicateMatchesSingleRunWithBaseSeed(t *testing.T) {
	// GIVEN a base seed
	topo := mm1(t, 3)
	cfg := baseConfig()

	// WHEN replicates run and a single run uses the base seed
	res, err := Run(topo, Config{Run: cfg, Replicates: 2, Workers: 2})
	require.NoError(t, err)
	single, err := sim.Run(topo, cfg)
	require.NoError(t, err)

	// THEN replicate 0 reproduces the single run exactly
	assert.Equal(t, single, res.Reports[0])
}

func TestRun_IndependentOfWorkerCount(t *testing.T) {
	// GIVEN the same batch on one and on four workers
	topo := mm1(t, 3)
	serial, err := Run(topo, Config{Run: baseConfig(), Replicates: 4, Workers: 1})
	require.NoError(t, err)
	parallel, err := Run(topo, Config{Run: baseConfig(), Replicates: 4, Workers: 4})
	require.NoError(t, err)

	// THEN the aggregates are identical
	assert.Equal(t, serial.Stations, parallel.Stations)
	assert.Equal(t, serial.MeanSojourn, parallel.MeanSojourn)
}

func TestRun_RejectsBadConfig(t *testing.T) {
	topo := mm1(t, 3)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero replicates", Config{Run: baseConfig(), Replicates: 0}},
		{"observer", Config{Run: func() sim.RunConfig {
			c := baseConfig()
			c.Observer = func(sim.Event, sim.StationSnapshot) {}
			return c
		}(), Replicates: 2}},
		{"confidence out of range", Config{Run: baseConfig(), Replicates: 2, Confidence: 1.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(topo, tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestRun_UnstableNetworkRefusedBeforeAnyReplicate(t *testing.T) {
	// GIVEN λ=4 against μ=3
	topo := mm1(t, 3)
	cfg := baseConfig()
	cfg.ArrivalRates["s"] = 4

	// WHEN replicates are requested without acknowledging instability
	_, err := Run(topo, Config{Run: cfg, Replicates: 3})

	// THEN the run is refused with an UnstableSystemError
	var unstable *sim.UnstableSystemError
	require.True(t, errors.As(err, &unstable))
	assert.Equal(t, sim.StationID("s"), unstable.Station)
}

func TestRun_ReplicateErrorAbortsBatch(t *testing.T) {
	// GIVEN a horizon every replicate rejects
	topo := mm1(t, 3)
	cfg := baseConfig()
	cfg.Horizon = -1

	// WHEN the batch runs
	_, err := Run(topo, Config{Run: cfg, Replicates: 3, Workers: 2})

	// THEN the lowest-numbered failure is reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replicate 0")
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Estimate{}, Summarize(nil, 0.95))
	})
	t.Run("single sample has no spread", func(t *testing.T) {
		e := Summarize([]float64{3}, 0.95)
		assert.Equal(t, Estimate{Mean: 3, N: 1}, e)
	})
	t.Run("student t half-width", func(t *testing.T) {
		// GIVEN samples with mean 5 and sample std-dev sqrt(2.5)
		e := Summarize([]float64{3, 4, 5, 6, 7}, 0.95)

		// THEN half-width = t(0.975, 4) * s / sqrt(n), t ≈ 2.7764
		assert.InDelta(t, 5, e.Mean, 1e-12)
		assert.InDelta(t, math.Sqrt(2.5), e.StdDev, 1e-12)
		assert.InDelta(t, 2.7764*math.Sqrt(2.5)/math.Sqrt(5), e.HalfWidth, 1e-3)
		assert.True(t, e.Contains(5.5))
		assert.False(t, e.Contains(9))
	})
}

func TestResult_Print(t *testing.T) {
	topo := mm1(t, 3)
	res, err := Run(topo, Config{Run: baseConfig(), Replicates: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Print(&buf))
	assert.Contains(t, buf.String(), "=== Replicate Report ===")
	assert.Contains(t, buf.String(), "\"half_width\"")
	assert.NotContains(t, buf.String(), "\"Reports\"")
}
