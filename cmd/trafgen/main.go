package main

import (
	"fmt"
	"os"

	"github.com/iti/trafgen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runOpts holds the command line overrides of the experiment file
type runOpts struct {
	config     string
	duration   float64
	rate       string
	packetSize int
	interval   float64
	linkRate   string
	linkDelay  float64
	out        string
	metricsOut string
	logLevel   string
	logFormat  string
	dumpConfig string
}

var opts runOpts

var rootCmd = &cobra.Command{
	Use:   "trafgen",
	Short: "rate-paced traffic generation and telemetry",
	Long:  "trafgen runs rate-paced traffic over a simulated link and records congestion window and throughput series",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Usage()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run an experiment",
	Long:  "run an experiment described by --config, with command line flags overriding the file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", "", "experiment file (.yaml, .yml or .json)")
	flags.Float64Var(&opts.duration, "time", 0, "simulation time in seconds")
	flags.StringVar(&opts.rate, "rate", "", "generator data rate, e.g. 40Mbps")
	flags.IntVar(&opts.packetSize, "packet-size", 0, "generator packet size in bytes")
	flags.Float64Var(&opts.interval, "interval", 0, "throughput sampling interval in seconds")
	flags.StringVar(&opts.linkRate, "link-rate", "", "link bandwidth, e.g. 54Mbps")
	flags.Float64Var(&opts.linkDelay, "link-delay", -1, "link propagation delay in seconds")
	flags.StringVarP(&opts.out, "out", "o", "", "telemetry output file (.yaml, .yml or .json)")
	flags.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.dumpConfig, "dump-config", "", "write the effective experiment description to this file")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the experiment file, if any, and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*trafgen.ExpCfg, error) {
	cfg := trafgen.DefaultExpCfg()
	if opts.config != "" {
		var err error
		cfg, err = trafgen.ReadExpCfg(opts.config, trafgen.UseYAML(opts.config), []byte{})
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Duration = opts.duration
	}
	if flags.Changed("rate") {
		cfg.Generator.DataRate = opts.rate
	}
	if flags.Changed("packet-size") {
		cfg.Generator.PacketSize = opts.packetSize
	}
	if flags.Changed("interval") {
		cfg.Sampling.Interval = opts.interval
	}
	if flags.Changed("link-rate") {
		cfg.Link.Bandwidth = opts.linkRate
	}
	if flags.Changed("link-delay") {
		cfg.Link.Delay = opts.linkDelay
	}
	if flags.Changed("out") {
		cfg.Output.Telemetry = opts.out
	}
	if flags.Changed("metrics-out") {
		cfg.Output.Metrics = opts.metricsOut
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Formatter = opts.logFormat
	}
	return cfg, nil
}

func run(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := trafgen.ConfigureLogging(cfg.Log); err != nil {
		return err
	}
	if opts.dumpConfig != "" {
		if err := cfg.WriteToFile(opts.dumpConfig); err != nil {
			return err
		}
	}

	metrics, err := trafgen.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	exp, err := trafgen.BuildExperiment(cfg, metrics)
	if err != nil {
		return err
	}
	if err := exp.Run(); err != nil {
		return err
	}
	for _, name := range exp.Telemetry.Names() {
		rc, _ := exp.Telemetry.Recorder(name)
		sm := rc.Summary()
		logrus.WithFields(logrus.Fields{
			"series": name,
			"count":  sm.Count,
			"mean":   sm.Mean,
			"max":    sm.Max,
		}).Info("series summary")
	}
	return exp.WriteOutputs()
}
