package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/queuesim/queuesim/sim"
	"github.com/queuesim/queuesim/sim/replicate"
	"github.com/queuesim/queuesim/sim/trace"
)

var (
	// CLI flags for the run
	configPath      string  // Path to the YAML network file
	seed            int64   // Base seed for every random stream
	horizon         float64 // Simulated time after which events are dropped
	maxCustomers    int     // Cap on external arrivals, 0 = unlimited
	replicates      int     // Number of independent replicates
	workers         int     // Concurrent replicates, 0 = one per CPU
	allowUnstable   bool    // Run even when some station has rho >= 1
	traceLevel      string  // Routing trace verbosity
	traceMaxRecords int     // Cap on stored routing records, 0 = unlimited
	outputPath      string  // Optional JSON report file
	logLevel        string  // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "queuesim",
	Short: "Discrete-event simulator for open queueing networks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd simulates the network in --config and prints the report
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a queueing network",
	Run: func(cmd *cobra.Command, args []string) {
		netCfg := loadNetwork()
		topo, rates, err := netCfg.Build()
		if err != nil {
			logrus.Fatalf("Invalid network %s: %v", configPath, err)
		}
		applyRunDefaults(cmd.Flags().Changed, netCfg.Run)

		rc := sim.RunConfig{
			ArrivalRates:    rates,
			Horizon:         horizon,
			Seed:            seed,
			MaxCustomers:    maxCustomers,
			AllowUnstable:   allowUnstable,
			TraceLevel:      trace.TraceLevel(traceLevel),
			TraceMaxRecords: traceMaxRecords,
		}
		logrus.Infof("Starting simulation of %d stations, horizon=%g, seed=%d, replicates=%d",
			len(topo.Stations()), horizon, seed, replicates)
		startTime := time.Now()

		if replicates > 1 {
			res, err := replicate.Run(topo, replicate.Config{Run: rc, Replicates: replicates, Workers: workers})
			if err != nil {
				logrus.Fatalf("Simulation failed: %v", err)
			}
			if err := res.Print(cmd.OutOrStdout()); err != nil {
				logrus.Fatalf("Printing report: %v", err)
			}
			if outputPath != "" {
				if err := res.SaveResults(outputPath); err != nil {
					logrus.Fatalf("%v", err)
				}
			}
		} else {
			report, err := sim.Run(topo, rc)
			if err != nil {
				logrus.Fatalf("Simulation failed: %v", err)
			}
			if err := report.Print(cmd.OutOrStdout()); err != nil {
				logrus.Fatalf("Printing report: %v", err)
			}
			if outputPath != "" {
				if err := report.SaveResults(outputPath); err != nil {
					logrus.Fatalf("%v", err)
				}
			}
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// loadNetwork reads --config or exits.
func loadNetwork() *sim.NetworkConfig {
	if configPath == "" {
		logrus.Fatalf("Network file not provided (--config). Exiting.")
	}
	netCfg, err := sim.LoadNetworkConfig(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return netCfg
}

// applyRunDefaults copies the YAML run section into every flag the user did not set.
func applyRunDefaults(changed func(name string) bool, d sim.RunDefaults) {
	if d.Horizon != nil && !changed("horizon") {
		horizon = *d.Horizon
	}
	if d.Seed != nil && !changed("seed") {
		seed = *d.Seed
	}
	if d.MaxCustomers != nil && !changed("max-customers") {
		maxCustomers = *d.MaxCustomers
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML network file")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Base seed for all random streams")
	runCmd.Flags().Float64Var(&horizon, "horizon", 10000, "Simulation horizon (inf requires --max-customers)")
	runCmd.Flags().IntVar(&maxCustomers, "max-customers", 0, "Maximum number of external arrivals (0 = unlimited)")
	runCmd.Flags().IntVar(&replicates, "replicates", 1, "Number of independent replicates")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Replicates run concurrently (0 = one per CPU)")
	runCmd.Flags().BoolVar(&allowUnstable, "allow-unstable", false, "Run even if some station has utilization >= 1")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Routing trace level (none, decisions)")
	runCmd.Flags().IntVar(&traceMaxRecords, "trace-max-records", 0, "Maximum routing records kept (0 = unlimited)")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Also write the JSON report to this file")

	analyzeCmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML network file")

	mmcCmd.Flags().Float64Var(&mmcLambda, "lambda", 0, "Arrival rate")
	mmcCmd.Flags().Float64Var(&mmcMu, "mu", 0, "Service rate per server")
	mmcCmd.Flags().IntVar(&mmcServers, "servers", 1, "Number of servers")
	mmcCmd.Flags().Float64Var(&mmcSCV, "scv", 1, "Squared coefficient of variation of service time")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(mmcCmd)
}
