package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/panos108/lyapunov-learning/internal/config"
	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/export"
	"github.com/panos108/lyapunov-learning/internal/integrators"
	"github.com/panos108/lyapunov-learning/internal/learner"
	"github.com/panos108/lyapunov-learning/internal/safety"
	"github.com/panos108/lyapunov-learning/internal/sim"
	"github.com/panos108/lyapunov-learning/internal/storage"
	"github.com/panos108/lyapunov-learning/internal/verify"
	"github.com/panos108/lyapunov-learning/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool

	budget       int
	noSave       bool
	mapWidth     int
	trueDynamics bool

	theta    float64
	omega    float64
	duration float64

	svgPath string
	band    float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roalearn",
		Short: "safe region-of-attraction learning for an inverted pendulum",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".roalearn", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	learnCmd := &cobra.Command{
		Use:   "learn",
		Short: "run the active-learning loop",
		RunE:  runLearn,
	}
	learnCmd.Flags().IntVar(&budget, "budget", 0, "iteration budget (overrides config)")
	learnCmd.Flags().BoolVar(&noSave, "no-save", false, "skip run persistence")
	learnCmd.Flags().IntVar(&mapWidth, "width", 60, "safe-set map width")
	learnCmd.Flags().StringVar(&svgPath, "svg", "", "write the final safe set to an SVG file")

	certifyCmd := &cobra.Command{
		Use:   "certify",
		Short: "one-shot certification of the current model",
		RunE:  runCertify,
	}
	certifyCmd.Flags().BoolVar(&trueDynamics, "true-dynamics", false, "diagnostic: certify against the exact plant, no uncertainty")
	certifyCmd.Flags().IntVar(&mapWidth, "width", 60, "safe-set map width")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "roll out the true closed loop from a normalized state",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Float64Var(&theta, "theta", 0.5, "initial normalized angle")
	simulateCmd.Flags().Float64Var(&omega, "omega", 0.0, "initial normalized angular velocity")
	simulateCmd.Flags().Float64Var(&duration, "time", 0, "horizon in seconds (overrides config)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  runList,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "write a run's certified mask CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the learning loop with a live terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&budget, "budget", 0, "iteration budget (overrides config)")
	liveCmd.Flags().IntVar(&mapWidth, "width", 60, "safe-set map width")

	verifyCmd := &cobra.Command{
		Use:   "verify [run_id]",
		Short: "roll out a stored run's certified boundary under the true plant",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().Float64Var(&band, "band", 0.2, "fraction of the levelset band to sample (outermost states)")

	rootCmd.AddCommand(learnCmd, certifyCmd, simulateCmd, verifyCmd, listCmd, exportCmd, presetsCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runLearn(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	if budget > 0 {
		cfg.Learn.Budget = budget
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("starting run",
		"grid", pl.grid.Len(),
		"budget", cfg.Learn.Budget,
		"beta", cfg.Safety.Beta,
		"threshold", cfg.Threshold(pl.grid.Spacing()))

	res, err := pl.learn.Run(ctx, cfg.Learn.Budget, func(it learner.Iteration) {
		slog.Info("iteration",
			"i", it.Index,
			"level", it.Level,
			"safe", it.SafeCount,
			"max_variance", it.MaxVariance,
			"query", it.QueryPoint)
	})
	if err != nil {
		if errors.Is(err, safety.ErrSeedNotCertified) {
			slog.Error("seed region failed certification; the assumed-safe set contradicts the model", "err", err)
		}
		return err
	}

	printResult(pl, res)

	if svgPath != "" {
		svg, err := export.SafeSetSVG(pl.grid, res.Safe, pl.seed, pl.pred.Samples(), 8)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		slog.Info("safe set written", "path", svgPath)
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(pl.grid, pl.v, res, pl.pred.Samples(), preset,
		cfg.Safety.Beta, cfg.Safety.Lipschitz, cfg.Learn.Budget)
	if err != nil {
		return err
	}
	slog.Info("run saved", "id", runID, "dir", dataDir)
	return nil
}

func printResult(pl *pipeline, res *learner.Result) {
	safeCount := 0
	for _, ok := range res.Safe {
		if ok {
			safeCount++
		}
	}
	fmt.Printf("level c     %.4f\n", res.Level)
	fmt.Printf("safe points %d / %d (%.1f%%)\n",
		safeCount, pl.grid.Len(), 100*float64(safeCount)/float64(pl.grid.Len()))
	fmt.Printf("samples     %d\n", len(pl.pred.Samples()))
	if res.Converged {
		fmt.Println("converged before budget exhausted")
	}

	if pl.grid.Dim() == 2 {
		if m, err := viz.SafeMap(pl.grid, res.Safe, pl.seed, pl.pred.Samples(), mapWidth); err == nil {
			fmt.Println(m)
		}
	}
}

func runCertify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if trueDynamics {
		// Ideal-knowledge baseline: exact dynamics, no confidence slack,
		// no seed assumption.
		tp, err := pl.truePredictor()
		if err != nil {
			return err
		}
		pl.learn.Predictor = tp
		pl.learn.Seed = nil
		slog.Info("certifying against exact dynamics")
	}

	res, err := pl.learn.Certify(ctx)
	if err != nil {
		return err
	}

	safeCount := 0
	for _, ok := range res.Safe {
		if ok {
			safeCount++
		}
	}
	fmt.Printf("level c     %.4f\n", res.Level)
	fmt.Printf("safe points %d / %d (%.1f%%)\n",
		safeCount, pl.grid.Len(), 100*float64(safeCount)/float64(pl.grid.Len()))

	if pl.grid.Dim() == 2 {
		if m, err := viz.SafeMap(pl.grid, res.Safe, pl.learn.Seed, nil, mapWidth); err == nil {
			fmt.Println(m)
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	if duration > 0 {
		cfg.Sim.Duration = duration
	}

	ctx, cancel := signalContext()
	defer cancel()

	r := &sim.Rollout{
		System:     pl.oracle,
		Integ:      integrators.New(cfg.Sim.Integrator),
		Dt:         cfg.Sim.Dt,
		Duration:   cfg.Sim.Duration,
		SettleNorm: cfg.Sim.SettleNorm,
	}

	x0 := dynamo.State{theta, omega}
	slog.Info("rolling out", "from", x0, "dt", cfg.Sim.Dt, "duration", cfg.Sim.Duration)

	tr, err := r.Run(ctx, x0)
	if err != nil {
		return err
	}

	if tr.Settled {
		fmt.Printf("settled at t=%.2fs, final state %v\n", tr.SettleTime, tr.Final())
	} else {
		fmt.Printf("did not settle within %.1fs, final state %v\n", cfg.Sim.Duration, tr.Final())
	}

	angles := make([]float64, len(tr.States))
	for i, s := range tr.States {
		angles[i] = s[0]
	}
	fmt.Println(asciigraph.Plot(angles,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption("normalized angle")))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	rawPoints, v, safe, err := st.LoadSafe(args[0])
	if err != nil {
		return err
	}

	points := make([]dynamo.State, len(rawPoints))
	for i, p := range rawPoints {
		points[i] = dynamo.State(p)
	}
	states := verify.Boundary(points, v, safe, meta.Level, band)
	if len(states) == 0 {
		fmt.Println("no certified boundary states to verify")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("verifying boundary", "run", meta.ID, "level", meta.Level, "states", len(states))

	vf := &verify.Verifier{
		System:     pl.oracle,
		Ctrl:       pl.lqr,
		Integ:      func() dynamo.Integrator { return integrators.New(cfg.Sim.Integrator) },
		Dt:         cfg.Sim.Dt,
		Duration:   cfg.Sim.Duration,
		SettleNorm: cfg.Sim.SettleNorm,
	}
	report, err := vf.Run(ctx, states)
	if err != nil {
		return err
	}

	fmt.Printf("settled     %d / %d (%.1f%%)\n", report.Settled, report.Total, 100*report.SettleFraction())
	fmt.Printf("max |u|     %.3f (limit %.3f)\n", report.MaxControl, cfg.Plant.True.MaxTorque)
	for _, f := range report.Failures {
		fmt.Printf("failed from %v\n", f)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPRESET\tITER\tLEVEL\tSAFE\tCONVERGED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%.1f%%\t%v\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Preset,
			run.Iterations,
			run.Level,
			100*run.SafeFraction,
			run.Converged)
	}
	return w.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	file, err := os.Open(st.SafePath(args[0]))
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(os.Stdout, file)
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	if budget > 0 {
		cfg.Learn.Budget = budget
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Buffered to the full budget so the learner never blocks on a viewer
	// that quit early.
	updates := make(chan learner.Iteration, cfg.Learn.Budget)
	done := make(chan error, 1)
	finished := make(chan struct{})
	var res *learner.Result
	go func() {
		defer close(finished)
		r, err := pl.learn.Run(ctx, cfg.Learn.Budget, func(it learner.Iteration) {
			updates <- it
		})
		res = r
		close(updates)
		done <- err
	}()

	model := viz.NewModel(pl.grid, cfg.Learn.Budget, updates, done)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return err
	}
	cancel()
	<-finished

	if res != nil {
		printResult(pl, res)
	}
	return nil
}
