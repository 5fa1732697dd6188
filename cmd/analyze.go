package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/queuesim/queuesim/sim"
)

var (
	// CLI flags for the single-station analysis
	mmcLambda  float64 // Arrival rate
	mmcMu      float64 // Service rate per server
	mmcServers int     // Number of servers
	mmcSCV     float64 // Squared coefficient of variation of service
)

// analyzeCmd prints the closed-form analysis of the network in --config
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Solve flow balance and print closed-form station measures",
	Run: func(cmd *cobra.Command, args []string) {
		netCfg := loadNetwork()
		topo, rates, err := netCfg.Build()
		if err != nil {
			logrus.Fatalf("Invalid network %s: %v", configPath, err)
		}
		analysis, err := sim.AnalyzeNetwork(topo, rates)
		if err != nil {
			logrus.Fatalf("Analysis failed: %v", err)
		}
		if !analysis.Stable {
			logrus.Warnf("Network is unstable: stations %v have rho >= 1", analysis.Unstable)
		}
		if err := printJSON(cmd.OutOrStdout(), "=== Network Analysis ===", analysis); err != nil {
			logrus.Fatalf("Printing analysis: %v", err)
		}
	},
}

// mmcCmd prints the closed-form measures of one M/M/c (or M/G/c) station
var mmcCmd = &cobra.Command{
	Use:   "mmc",
	Short: "Closed-form measures of a single multi-server station",
	Run: func(cmd *cobra.Command, args []string) {
		m, err := sim.AnalyzeStation(mmcLambda, mmcMu, mmcServers, mmcSCV)
		if err != nil {
			logrus.Fatalf("Analysis failed: %v", err)
		}
		if err := printJSON(cmd.OutOrStdout(), "=== Station Analysis ===", m); err != nil {
			logrus.Fatalf("Printing analysis: %v", err)
		}
	},
}

func printJSON(w io.Writer, header string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", header, err)
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
