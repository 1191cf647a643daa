package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/export"
	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/optim"
	"github.com/san-kum/mpmsim/internal/storage"
	"github.com/san-kum/mpmsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	dataDir  string
	logLevel string

	dt          float64
	steps       int
	saveEvery   int
	workers     int
	damping     float64
	kernel      string
	noSnapshots bool
	saveConfig  string

	column       string
	svgOut       string
	snapStep     int
	snapField    string
	snapPlane    string
	benchSteps   int
	benchWorkers []int

	sweepParams   []string
	sweepMetric   string
	sweepParallel int
)

// main registers the commands and flags and exits with status 1 if the
// command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "mpmsim",
		Short:        "material point simulation of granular soil",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(os.Stderr, logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(l)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a preset or a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addOverrideFlags(runCmd)
	runCmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "record history only")
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved scenario to this file and exit")

	watchCmd := &cobra.Command{
		Use:   "watch [scenario]",
		Short: "run a scenario with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  watchSimulation,
	}
	addOverrideFlags(watchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a history column of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "kinetic_energy",
		"history column ("+strings.Join(metrics.Columns, ", ")+", or all)")

	plotCmd.Flags().StringVar(&svgOut, "svg", "", "also write the chart of --column to this svg file")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [run_id]",
		Short: "render a particle snapshot of a run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  renderSnapshot,
	}
	snapshotCmd.Flags().IntVar(&snapStep, "step", -1, "saved step (default: last)")
	snapshotCmd.Flags().StringVar(&snapField, "field", "szz", "colour field ("+strings.Join(export.Fields, ", ")+")")
	snapshotCmd.Flags().StringVar(&snapPlane, "plane", "x-z", "projection plane (x-z, y-z, x-y)")
	snapshotCmd.Flags().StringVarP(&svgOut, "out", "o", "", "output file (default: stdout)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and history as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "measure steps per second for several worker counts",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScenario,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 50, "steps per measurement")
	benchCmd.Flags().IntSliceVar(&benchWorkers, "workers", nil, "worker counts (default 1, 2, 4, ... up to the CPU count)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scenario]",
		Short: "run a scenario over a grid of parameter values",
		Long: "Runs the scenario once per combination of --param values and ranks the runs\n" +
			"by the final value of --metric. Parameters: " + strings.Join(optim.ParamNames(), ", ") + ".",
		Args: cobra.ExactArgs(1),
		RunE: sweepScenario,
	}
	addOverrideFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "kinetic_energy", "final metric to rank by")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 1, "trials run at once")
	_ = sweepCmd.MarkFlagRequired("param")

	rootCmd.AddCommand(runCmd, watchCmd, listCmd, plotCmd, snapshotCmd, exportCmd, presetsCmd, benchCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step in solver units")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().IntVar(&saveEvery, "save-every", config.DefaultSaveEvery, "steps between save points (0 saves only first and last)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker threads (0 uses all CPUs)")
	cmd.Flags().Float64Var(&damping, "damping", 0, "global local-damping coefficient in [0, 1)")
	cmd.Flags().StringVar(&kernel, "kernel", config.DefaultKernel, "shape function (linear, quadratic, cubic)")
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// loadScenario resolves a preset or file and applies the flags the user set
// on top of it.
func loadScenario(cmd *cobra.Command, name string) (*config.Config, error) {
	cfg, err := experiment.NewRegistry().Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w (presets: %v)", err, config.ListPresets())
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Time.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Time.Steps = steps
	}
	if flags.Changed("save-every") {
		cfg.Time.SaveEvery = saveEvery
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	if flags.Changed("damping") {
		cfg.Solver.Damping = damping
	}
	if flags.Changed("kernel") {
		cfg.Grid.Kernel = kernel
	}
	if flags.Changed("no-snapshots") {
		cfg.Output.Snapshots = !noSnapshots
	}
	if flags.Changed("data") {
		cfg.Output.Dir = dataDir
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args[0])
	if err != nil {
		return err
	}
	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return err
		}
		fmt.Printf("scenario written to %s\n", saveConfig)
		return nil
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(); err != nil {
		return err
	}
	defer exp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s: %d particles, %d steps\n", cfg.Name, len(exp.Domain().Particles()), cfg.Time.Steps)
	start := time.Now()
	run, err := exp.Run(ctx, storage.New(cfg.Output.Dir))
	if run != nil {
		fmt.Printf("run id: %s\n", run.ID)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	meta := run.Metadata()
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("steps: %d (%.1f steps/s)\n", meta.StepsTaken, meta.StepsPerS)
	fmt.Printf("physical time: %.4gs\n", cfg.Scales.PhysicalTime(exp.Domain().Time()))
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(meta.Metrics) {
		fmt.Printf("  %s: %.6g\n", name, meta.Metrics[name])
	}
	return nil
}

func watchSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args[0])
	if err != nil {
		return err
	}

	// The terminal belongs to the view; logs go to a file in the run directory.
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return err
	}
	logFile, err := os.Create(filepath.Join(cfg.Output.Dir, "watch.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := newLogger(logFile, logLevel)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg)
	exp.SetLogger(logger)
	if err := exp.Setup(); err != nil {
		return err
	}
	defer exp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan tea.Msg, 4)
	done := make(chan error, 1)
	go func() {
		_, err := exp.Run(ctx, storage.New(cfg.Output.Dir), viz.Observer(ctx, updates))
		select {
		case updates <- viz.DoneMsg{Err: err}:
		case <-ctx.Done():
		}
		close(updates)
		done <- err
	}()

	mc := exp.Domain().Config()
	extent := r3.Vec{
		X: float64(mc.Nx-1) * mc.Cell.X,
		Y: float64(mc.Ny-1) * mc.Cell.Y,
		Z: float64(mc.Nz-1) * mc.Cell.Z,
	}
	model := viz.NewModel(cfg.Name, cfg.Time.Steps, extent, updates, cancel)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		return err
	}
	cancel()
	if err := <-done; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tSTATUS\tSTEPS\tPARTICLES\tKERNEL\tSTEPS/SEC")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\t%.1f\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.StepsTaken,
			run.Steps,
			run.Particles,
			run.Kernel,
			run.StepsPerS,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		return fmt.Errorf("run %s has %d history rows, need at least 2 to plot", runID, len(history))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(history))

	columns := []string{column}
	if column == "all" {
		columns = metrics.Columns
	}
	for _, name := range columns {
		data := make([]float64, len(history))
		for i := range history {
			v, err := history[i].Column(name)
			if err != nil {
				return err
			}
			data[i] = v
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s vs save point (steps %d..%d)", name, history[0].Step, history[len(history)-1].Step)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if svgOut != "" {
		svg, err := export.HistoryToSVG(history, columns[0], 800, 300, "#00ff88")
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("chart written to %s\n", svgOut)
	}
	return nil
}

func renderSnapshot(cmd *cobra.Command, args []string) error {
	runID := args[0]
	plane, err := viz.ParsePlane(snapPlane)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	step := snapStep
	if step < 0 {
		saved, err := st.Snapshots(runID)
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			return fmt.Errorf("run %s has no snapshots", runID)
		}
		step = saved[len(saved)-1]
	}
	rows, err := st.LoadParticles(runID, step)
	if err != nil {
		return err
	}

	extent := r3.Vec{
		X: float64(meta.Grid[0]-1) * meta.Cell[0],
		Y: float64(meta.Grid[1]-1) * meta.Cell[1],
		Z: float64(meta.Grid[2]-1) * meta.Cell[2],
	}
	svg, err := export.ParticlesToSVG(rows, extent, plane, snapField, 800)
	if err != nil {
		return err
	}
	if svgOut == "" {
		fmt.Println(svg)
		return nil
	}
	if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("step %d of %s written to %s\n", step, runID, svgOut)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).Export(os.Stdout, args[0])
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGRID\tKERNEL\tREGIONS\tBOUNDARIES\tSTEPS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		n := cfg.Grid.Nodes
		fmt.Fprintf(w, "%s\t%dx%dx%d\t%s\t%d\t%d\t%d\n",
			name, n[0], n[1], n[2], cfg.Grid.Kernel, len(cfg.Regions), len(cfg.Boundaries), cfg.Time.Steps)
	}
	return w.Flush()
}

func benchScenario(cmd *cobra.Command, args []string) error {
	cfg, err := experiment.NewRegistry().Get(args[0])
	if err != nil {
		return err
	}
	counts := benchWorkers
	if len(counts) == 0 {
		counts = defaultWorkerCounts(runtime.NumCPU())
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Printf("benchmarking %s (%d steps)\n\n", cfg.Name, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tPARTICLES\tTIME\tSTEPS/SEC\tSPEEDUP")

	base := 0.0
	for _, n := range counts {
		cfg.Solver.Workers = n
		cfg.Time.Steps = benchSteps
		cfg.Time.SaveEvery = 0

		exp := experiment.New(cfg)
		exp.SetLogger(quiet)
		if err := exp.Setup(); err != nil {
			return err
		}
		start := time.Now()
		_, err := exp.Run(context.Background(), nil)
		elapsed := time.Since(start)
		particles := len(exp.Domain().Particles())
		exp.Close()
		if err != nil {
			return err
		}

		rate := float64(benchSteps) / elapsed.Seconds()
		if base == 0 {
			base = rate
		}
		fmt.Fprintf(w, "%d\t%d\t%v\t%.1f\t%.2fx\n", n, particles, elapsed.Round(time.Millisecond), rate, rate/base)
	}
	return w.Flush()
}

func sweepScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args[0])
	if err != nil {
		return err
	}
	names, ranges, err := parseSweepParams(sweepParams)
	if err != nil {
		return err
	}
	gs, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	gs.SetParallel(sweepParallel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("sweep started", "scenario", cfg.Name, "trials", len(gs.Points()), "metric", sweepMetric)
	start := time.Now()
	trials, err := gs.Search(ctx, cfg, sweepMetric)
	if err != nil {
		return err
	}
	slog.Info("sweep finished", "elapsed", time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for i, t := range trials {
		vals := make([]string, len(names))
		for j, n := range names {
			vals[j] = strconv.FormatFloat(t.Params[n], 'g', 6, 64)
		}
		result := fmt.Sprintf("%.6g", t.Value)
		if t.Err != nil {
			result = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, strings.Join(vals, "\t"), result)
	}
	return w.Flush()
}

// parseSweepParams reads name=v1,v2,... arguments in order.
func parseSweepParams(args []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid --param %q, want name=v1,v2", arg)
		}
		if slices.Contains(names, name) {
			return nil, nil, fmt.Errorf("parameter %q given twice", name)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid value in --param %q: %w", arg, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

// defaultWorkerCounts returns 1, 2, 4, ... below cpus, followed by cpus.
func defaultWorkerCounts(cpus int) []int {
	var counts []int
	for n := 1; n < cpus; n *= 2 {
		counts = append(counts, n)
	}
	return append(counts, max(cpus, 1))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
