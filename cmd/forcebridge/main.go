package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/forcebridge/forcebridge/internal/bridge"
	"github.com/forcebridge/forcebridge/internal/comm"
	"github.com/forcebridge/forcebridge/internal/config"
	"github.com/forcebridge/forcebridge/internal/md"
	"github.com/forcebridge/forcebridge/internal/metrics"
	"github.com/forcebridge/forcebridge/internal/tui"
)

var (
	configFile string
	preset     string

	channelName string
	transport   string
	particles   int
	nneighs     int
	precision   string
	forceMode   string
	sendNeighs  bool
	virial      bool
	dt          float64
	steps       int
	cutoff      float64
	timeoutMS   int
	epsilon     float64
	sigma       float64
	live        bool
	spacing     float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forcebridge",
		Short: "shared-memory particle exchange between a simulation and an external engine",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the host simulation side of the exchange",
		RunE:  runHost,
	}
	addExchangeFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "live terminal monitor")

	engineCmd := &cobra.Command{
		Use:   "engine",
		Short: "run the demo compute engine side (Lennard-Jones)",
		RunE:  runEngine,
	}
	addExchangeFlags(engineCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark an in-process loopback exchange",
		RunE:  runBench,
	}
	addExchangeFlags(benchCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Run: func(cmd *cobra.Command, args []string) {
			names := config.ListPresets()
			sort.Strings(names)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARTICLES\tNNEIGHS\tPRECISION\tMODE")
			for _, name := range names {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", name, p.Particles, p.NNeighs, p.Precision, p.ForceMode)
			}
			w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, engineCmd, benchCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExchangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&channelName, "channel", "default", "channel name")
	cmd.Flags().StringVar(&transport, "transport", "auto", "transport: auto|host|cuda")
	cmd.Flags().IntVar(&particles, "particles", config.DefaultParticles, "particle count")
	cmd.Flags().IntVar(&nneighs, "nneighs", config.DefaultNNeighs, "neighbor capacity per particle")
	cmd.Flags().StringVar(&precision, "precision", "single", "precision: single|double")
	cmd.Flags().StringVar(&forceMode, "force-mode", "overwrite", "force mode: overwrite|add|ignore|output")
	cmd.Flags().BoolVar(&sendNeighs, "send-neighbors", true, "exchange neighbor lists")
	cmd.Flags().BoolVar(&virial, "virial", false, "receive per-particle virial")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&cutoff, "cutoff", config.DefaultCutoff, "neighbor cutoff radius")
	cmd.Flags().IntVar(&timeoutMS, "timeout", config.DefaultTimeoutMS, "receive timeout (ms, 0 blocks)")
	cmd.Flags().Float64Var(&epsilon, "epsilon", config.DefaultEpsilon, "LJ epsilon")
	cmd.Flags().Float64Var(&sigma, "sigma", config.DefaultSigma, "LJ sigma")
	cmd.Flags().Float64Var(&spacing, "spacing", 1.2, "initial lattice spacing")
}

// resolveConfig merges config file, preset, and flags; flags set
// explicitly win over both.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("channel") {
		cfg.Channel = channelName
	}
	if set("transport") {
		cfg.Transport = transport
	}
	if set("particles") {
		cfg.Particles = particles
	}
	if set("nneighs") {
		cfg.NNeighs = nneighs
	}
	if set("precision") {
		cfg.Precision = precision
	}
	if set("force-mode") {
		cfg.ForceMode = forceMode
	}
	if set("send-neighbors") {
		cfg.SendNeighbors = sendNeighs
	}
	if set("virial") {
		cfg.Virial = virial
	}
	if set("dt") {
		cfg.Dt = dt
	}
	if set("steps") {
		cfg.Steps = steps
	}
	if set("cutoff") {
		cfg.Cutoff = cutoff
	}
	if set("timeout") {
		cfg.TimeoutMS = timeoutMS
	}
	if set("epsilon") {
		cfg.Epsilon = epsilon
	}
	if set("sigma") {
		cfg.Sigma = sigma
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bridgeConfig(cfg *config.Config) bridge.Config {
	return bridge.Config{
		ChannelName:   cfg.Channel,
		NNeighs:       cfg.NNeighs,
		Precision:     cfg.GetPrecision(),
		Mode:          cfg.GetForceMode(),
		SendNeighbors: cfg.SendNeighbors,
		ReceiveVirial: cfg.Virial,
		Timeout:       cfg.Timeout(),
	}
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	tr, err := comm.SelectTransport(cfg.Transport)
	if err != nil {
		return err
	}

	store := md.NewParticles(cfg.Particles)
	md.InitLattice(store, spacing)
	neighbors := md.NewNeighbors(store, cfg.Cutoff)
	integrator := md.Leapfrog{Dt: cfg.Dt, Mass: 1.0}

	b, err := bridge.New(store, neighbors, tr, bridgeConfig(cfg))
	if err != nil {
		return err
	}
	defer b.Close()

	stats := metrics.NewExchange()
	b.SetObserver(stats)

	fmt.Printf("transport: %s\n", tr.Name())
	fmt.Printf("channel:   %s (waiting for engine)\n", comm.SegmentPath(cfg.Channel, b.Generation()))

	loop := func(onErr func(error)) {
		for i := 0; i < cfg.Steps; i++ {
			if err := b.Step(uint64(i)); err != nil {
				onErr(err)
				return
			}
			integrator.Step(store)
		}
	}

	if live {
		// The step loop and the render loop share nothing directly: the
		// loop goroutine publishes through the tracker, the TUI polls
		// snapshots out of it.
		tracker := tui.NewStatusTracker(tui.Status{
			Transport:  tr.Name(),
			Channel:    cfg.Channel,
			Particles:  store.N(),
			NNeighs:    cfg.NNeighs,
			Precision:  cfg.Precision,
			ForceMode:  cfg.ForceMode,
			Generation: b.Generation(),
		})
		done := make(chan error, 1)
		go func() {
			var runErr error
			loop(func(err error) { runErr = err })
			tracker.Finish(runErr)
			done <- runErr
		}()
		if err := tui.Run(stats, tracker.Get); err != nil {
			return err
		}
		if runErr := <-done; runErr != nil {
			return runErr
		}
	} else {
		var runErr error
		loop(func(err error) { runErr = err })
		if runErr != nil {
			return runErr
		}
	}

	printSummary(stats, cfg)
	return nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	tr, err := comm.SelectTransport(cfg.Transport)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := bridge.AttachEngine(tr, bridge.EngineConfig{
		ChannelName:   cfg.Channel,
		NeighborAware: cfg.SendNeighbors,
		SendVirial:    cfg.Virial,
		Timeout:       time.Second, // poll so cancellation is noticed
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Printf("transport: %s\n", tr.Name())
	fmt.Printf("attached:  %s, %d particles\n", cfg.Channel, eng.Layout().N)

	err = eng.Serve(ctx, ljForceFunc(cfg))
	if ctx.Err() != nil {
		fmt.Println("engine stopped")
		return nil
	}
	return err
}

// ljForceFunc adapts the Lennard-Jones reference computation to the engine
// callback, expanding per-particle forces into the multi-slot payload in
// output mode (self slot carries the force, neighbor slots stay zero, the
// echo returns positions unchanged).
func ljForceFunc(cfg *config.Config) bridge.ForceFunc {
	lj := md.LennardJones(cfg.Epsilon, cfg.Sigma, cfg.Cutoff)
	return func(req bridge.ForceRequest) bridge.ForceResult {
		l := req.Layout
		forces, virial := lj(req.Positions, req.Neighbors, l.N, l.NNeighs)

		res := bridge.ForceResult{Virial: virial}
		if l.Mode == comm.ForceOutput {
			slots := 1 + l.NNeighs
			payload := make([]comm.Vec4, l.ForceRecords)
			for i := 0; i < l.N; i++ {
				payload[i*slots] = forces[i]
			}
			res.Forces = payload
			res.Echo = req.Positions
		} else {
			res.Forces = forces
		}
		return res
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Channel = fmt.Sprintf("bench-%d", os.Getpid())
	tr := comm.NewHostTransport()

	store := md.NewParticles(cfg.Particles)
	md.InitLattice(store, spacing)
	neighbors := md.NewNeighbors(store, cfg.Cutoff)

	b, err := bridge.New(store, neighbors, tr, bridgeConfig(cfg))
	if err != nil {
		return err
	}
	defer b.Close()

	stats := metrics.NewExchange()
	b.SetObserver(stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engineDone := make(chan error, 1)
	go func() {
		eng, err := bridge.AttachEngine(tr, bridge.EngineConfig{
			ChannelName:   cfg.Channel,
			NeighborAware: cfg.SendNeighbors,
			SendVirial:    cfg.Virial,
			Timeout:       200 * time.Millisecond,
		})
		if err != nil {
			engineDone <- err
			return
		}
		defer eng.Close()
		engineDone <- eng.Serve(ctx, ljForceFunc(cfg))
	}()

	start := time.Now()
	for i := 0; i < cfg.Steps; i++ {
		if err := b.Step(uint64(i)); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	cancel()
	b.Close()
	<-engineDone

	fmt.Printf("%d steps in %v (%.0f steps/s)\n\n",
		cfg.Steps, elapsed.Round(time.Millisecond),
		float64(cfg.Steps)/elapsed.Seconds())
	printSummary(stats, cfg)

	if history := stats.History(); len(history) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(history, asciigraph.Height(10), asciigraph.Caption("step latency (ms)")))
	}
	return nil
}

func printSummary(stats *metrics.Exchange, cfg *config.Config) {
	out, in := stats.Bytes()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "steps\t%d\n", stats.Steps())
	fmt.Fprintf(w, "mean latency\t%v\n", stats.MeanLatency().Round(time.Microsecond))
	fmt.Fprintf(w, "max latency\t%v\n", stats.MaxLatency().Round(time.Microsecond))
	fmt.Fprintf(w, "sent\t%d bytes\n", out)
	fmt.Fprintf(w, "received\t%d bytes\n", in)
	fmt.Fprintf(w, "mode\t%s/%s\n", cfg.ForceMode, cfg.Precision)
	w.Flush()
}
