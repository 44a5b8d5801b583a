package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/sarchlab/hiddenstations/capture"
	"github.com/sarchlab/hiddenstations/datarecording"
	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/metrics"
	"github.com/sarchlab/hiddenstations/monitoring"
	"github.com/sarchlab/hiddenstations/scenario"
	"github.com/sarchlab/hiddenstations/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

type runOptions struct {
	configPath  string
	envFile     string
	pcapPrefix  string
	dbPath      string
	xlsxPath    string
	monitor     bool
	monitorPort int
	openBrowser bool
	logEvents   bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	defaults := scenario.DefaultParams()

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario and print the throughput of every server.",
		Long: "Run one scenario. Parameters come from the defaults, then the " +
			"HIDDENSIM_* environment (also read from the .env file), then " +
			"the --config file, then the flags.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScenario(cmd, opts)
		},
	}

	f := runCmd.Flags()
	f.String("scenario", defaults.Scenario, fmt.Sprintf(
		"Built-in scenario, one of %v", scenario.Names()))
	f.Int("payloadSize", defaults.PayloadSize, "Payload size in bytes")
	f.Float64("simulationTime", defaults.SimulationTime,
		"Measured simulation time in seconds")
	f.Int("nMpdus", defaults.NMpdus, "Number of aggregated MPDUs")
	f.Bool("enableRts", defaults.EnableRts, "Enable RTS/CTS")
	f.Int("nPackets", defaults.NPackets,
		"Packets per echo client, 0 lets the scenario decide")
	f.Float64("range", defaults.Range, "Transmission range")
	f.Int64("seed", defaults.Seed, "Random seed")

	f.StringVar(&opts.configPath, "config", "",
		"Scenario file in YAML or JSON")
	f.StringVar(&opts.envFile, "env-file", ".env",
		"File with HIDDENSIM_* defaults")
	f.StringVar(&opts.pcapPrefix, "pcap", "",
		"Write one pcap per station as <prefix>_<station>.pcap")
	f.StringVar(&opts.dbPath, "db", "",
		"Record the run into <db>.sqlite3")
	f.StringVar(&opts.xlsxPath, "xlsx", "", "Save the report as a spreadsheet")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve the monitoring API")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring API, 0 picks one")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring API in a browser")
	f.BoolVar(&opts.logEvents, "log-events", false,
		"Log events and MAC state changes to stderr")

	return runCmd
}

// resolveParams layers the defaults, the environment, the scenario file and
// the flags that were set.
func resolveParams(
	cmd *cobra.Command,
	opts *runOptions,
) (scenario.Params, *scenario.Topology, error) {
	if err := scenario.LoadEnvFiles(opts.envFile); err != nil {
		return scenario.Params{}, nil, err
	}

	p := scenario.DefaultParams()
	if err := p.ApplyEnv(); err != nil {
		return scenario.Params{}, nil, err
	}

	var topo *scenario.Topology

	if opts.configPath != "" {
		file, err := scenario.LoadFile(opts.configPath, p)
		if err != nil {
			return scenario.Params{}, nil, err
		}

		p = file.Params
		topo = file.Topology
	}

	if err := applyFlags(cmd, &p); err != nil {
		return scenario.Params{}, nil, err
	}

	return p, topo, nil
}

func applyFlags(cmd *cobra.Command, p *scenario.Params) (err error) {
	f := cmd.Flags()

	if f.Changed("scenario") {
		p.Scenario, err = f.GetString("scenario")
	}
	if err == nil && f.Changed("payloadSize") {
		p.PayloadSize, err = f.GetInt("payloadSize")
	}
	if err == nil && f.Changed("simulationTime") {
		p.SimulationTime, err = f.GetFloat64("simulationTime")
	}
	if err == nil && f.Changed("nMpdus") {
		p.NMpdus, err = f.GetInt("nMpdus")
	}
	if err == nil && f.Changed("enableRts") {
		p.EnableRts, err = f.GetBool("enableRts")
	}
	if err == nil && f.Changed("nPackets") {
		p.NPackets, err = f.GetInt("nPackets")
	}
	if err == nil && f.Changed("range") {
		p.Range, err = f.GetFloat64("range")
	}
	if err == nil && f.Changed("seed") {
		p.Seed, err = f.GetInt64("seed")
	}

	return err
}

func runScenario(cmd *cobra.Command, opts *runOptions) error {
	p, topo, err := resolveParams(cmd, opts)
	if err != nil {
		return err
	}

	b := scenario.MakeBuilder().WithParams(p)
	if topo != nil {
		b = b.WithTopology(*topo)
	}

	var logger *log.Logger
	if opts.logEvents {
		logger = log.New(cmd.ErrOrStderr(), "", 0)
		b = b.WithEngineHook(sim.NewEventLogger(logger))
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	if logger != nil {
		s.Observe(mac.NewStateLogger(logger))
	}

	names := make([]string, len(s.Stations()))
	for i, st := range s.Stations() {
		names[i] = st.Name
	}

	finish, err := attachOutputs(s, opts, names)
	if err != nil {
		return err
	}

	report, err := s.Run()
	if err != nil {
		return err
	}

	if err := finish(report); err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), opts, report)
}

// attachOutputs wires the optional recorders and returns the function that
// completes them after the run.
func attachOutputs(
	s *scenario.Simulation,
	opts *runOptions,
	names []string,
) (func(metrics.Report) error, error) {
	var finishers []func(metrics.Report) error

	finish := func(r metrics.Report) error {
		for _, f := range finishers {
			if err := f(r); err != nil {
				return err
			}
		}

		return nil
	}

	if opts.dbPath != "" {
		rec, err := datarecording.New(opts.dbPath)
		if err != nil {
			return nil, err
		}

		atexit.Register(func() { rec.Flush() })

		exec := datarecording.NewExecRecorder(rec)
		exec.Start(s.Params())

		trace := datarecording.NewTraceRecorder(rec, names, opts.logEvents)
		s.Observe(trace)
		s.Engine().RegisterSimulationEndHandler(trace)

		finishers = append(finishers, func(r metrics.Report) error {
			trace.RecordReport(r)
			exec.End()

			return rec.Close()
		})
	}

	if opts.pcapPrefix != "" {
		c, err := capture.New(opts.pcapPrefix, names, s.AP().Index)
		if err != nil {
			return nil, err
		}

		s.Observe(c)

		finishers = append(finishers, func(metrics.Report) error {
			return c.Close()
		})
	}

	if opts.monitor {
		if err := startMonitor(s, opts); err != nil {
			return nil, err
		}
	}

	return finish, nil
}

func startMonitor(s *scenario.Simulation, opts *runOptions) error {
	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterEngine(s.Engine())

	for _, c := range s.Components() {
		m.RegisterComponent(c)
	}

	tracker := m.TrackSimTime("Simulation", s.Engine(), s.Params().EndTime())
	s.Engine().AcceptHook(tracker)

	url, err := m.StartServer()
	if err != nil {
		return err
	}

	if opts.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open %s: %v\n", url, err)
		}
	}

	return nil
}

func writeReport(w io.Writer, opts *runOptions, r metrics.Report) error {
	if err := metrics.WriteText(w, r); err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		return metrics.WriteXLSX(opts.xlsxPath, r)
	}

	return nil
}
