// Package testutil provides shared test infrastructure for the queueing engine.
// It holds the golden dataset of textbook queue measures and assertion helpers
// used by sim/ and its sub-packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_queues.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one single-station configuration with its exact steady state.
type GoldenTestCase struct {
	Name    string        `json:"name"`
	Lambda  float64       `json:"lambda"`
	Mu      float64       `json:"mu"`
	Servers int           `json:"servers"`
	SCV     float64       `json:"scv"` // squared coefficient of variation of service
	Metrics GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected measures of a golden test case.
// Values were computed from the factorial form of the M/M/c formulas, with the
// Pollaczek–Khinchine scaling for non-exponential single-server cases.
type GoldenMetrics struct {
	Rho      float64 `json:"rho"`
	P0       float64 `json:"p0"`
	ProbWait float64 `json:"prob_wait"`
	Lq       float64 `json:"lq"`
	Wq       float64 `json:"wq"`
	L        float64 `json:"l"`
	W        float64 `json:"w"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_queues.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("Golden dataset is empty")
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("%s: got %v, want %v", name, got, want)
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
