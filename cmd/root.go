// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/inference-sim/sim"
	topo "github.com/inference-sim/inference-sim/topo"
)

var (
	scenarioPath string
	logLevel     string
	untilSeconds float64
)

var rootCmd = &cobra.Command{
	Use:   "inference-sim",
	Short: "Discrete-event simulator for collective-communication network traffic",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario to completion (or to --until) and report results",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := topo.LoadFile(scenarioPath)
		if err != nil {
			logrus.Fatalf("failed to load scenario %s: %v", scenarioPath, err)
		}

		topology, err := cfg.BuildTopology()
		if err != nil {
			logrus.Fatalf("failed to build topology: %v", err)
		}
		if err := topology.Validate(); err != nil {
			logrus.Fatalf("invalid topology: %v", err)
		}

		s, err := sim.NewSimulator(topology, sim.PacketSpec{
			PacketSizeBytes: cfg.PacketSizeBytes,
			HeaderSizeBytes: cfg.HeaderSizeBytes,
		})
		if err != nil {
			logrus.Fatalf("failed to construct simulator: %v", err)
		}

		entries, err := cfg.BuildPolicy()
		if err != nil {
			logrus.Fatalf("invalid policy: %v", err)
		}
		if err := s.LoadPolicy(entries); err != nil {
			logrus.Fatalf("failed to load policy: %v", err)
		}

		if schedule := cfg.BuildRateSchedule(); schedule != nil {
			if err := s.LoadLinkRateSchedule(schedule); err != nil {
				logrus.Fatalf("failed to load rate schedule: %v", err)
			}
		}

		if err := s.Start(); err != nil {
			logrus.Fatalf("failed to start simulator: %v", err)
		}

		var until *float64
		if cmd.Flags().Changed("until") {
			if untilSeconds > 0 {
				until = &untilSeconds
			}
		} else if cfg.UntilSeconds != nil {
			until = cfg.UntilSeconds
		}
		s.Run(until)

		for tx, t := range s.TxCompleteTime {
			logrus.Infof("tx %s complete at t=%.9f", tx, t)
		}
		logrus.Infof("makespan=%.9f", s.Makespan())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file (required)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Float64Var(&untilSeconds, "until", 0, "Stop once simulated time reaches this horizon in seconds (0 = run to completion)")
	runCmd.MarkFlagRequired("scenario")

	rootCmd.AddCommand(runCmd)
}
