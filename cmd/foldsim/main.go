package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/experiment"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dataDir    string
	logLevel   string
	logJSON    bool
	configFile string
	preset     string
	modelName  string
	integrator string
	freeParam  string
	foldParam  string
	maxPoints  int
	stepSize   float64
	noFolds    bool
	predictor  string
	paramSets  []string
	bounds     []string
	initState  string
	noSave     bool
	svgPath    string
	jsonOut    string
	svgOut     string
	xAxis      string
	yAxis      string
	width      int
	height     int
	theme      string

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepN     int
	sweepLimit int

	log *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "foldsim",
		Short:         "equilibrium and fold continuation for ODE models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel, logJSON)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".foldsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	equilibriaCmd := &cobra.Command{
		Use:   "equilibria",
		Short: "find steady states from a set of initial guesses",
		RunE:  runEquilibria,
	}
	studyFlags(equilibriaCmd, "nullcline")
	equilibriaCmd.Flags().StringArrayVar(&guessFlags, "guess", nil, "initial guess as comma-separated values (repeatable)")
	equilibriaCmd.Flags().IntVar(&decimals, "decimals", -1, "rounding precision for merging duplicates")

	continueCmd := &cobra.Command{
		Use:   "continue",
		Short: "trace the equilibrium curve and the fold curve of each limit point",
		RunE:  runContinue,
	}
	studyFlags(continueCmd, "bifurcation")
	continueCmd.Flags().StringVar(&freeParam, "free", "", "free parameter")
	continueCmd.Flags().StringVar(&foldParam, "fold-param", "", "second parameter for fold curves")
	continueCmd.Flags().IntVar(&maxPoints, "max-points", 0, "maximum points per direction")
	continueCmd.Flags().Float64Var(&stepSize, "step", 0, "initial arclength step")
	continueCmd.Flags().BoolVar(&noFolds, "no-folds", false, "skip fold curves")
	continueCmd.Flags().StringVar(&predictor, "predictor", "", "predictor (secant, tangent)")
	continueCmd.Flags().StringArrayVar(&bounds, "bound", nil, "parameter bound name=min:max (repeatable)")
	continueCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	continueCmd.Flags().StringVar(&svgPath, "svg", "", "write the equilibrium curve as SVG")
	plotFlags(continueCmd)

	timeseriesCmd := &cobra.Command{
		Use:   "timeseries",
		Short: "integrate a trajectory",
		RunE:  runTimeseries,
	}
	studyFlags(timeseriesCmd, "timeseries")
	timeseriesCmd.Flags().StringVar(&integrator, "integrator", "", "integrator (euler, heun, rk4, rk45)")
	timeseriesCmd.Flags().Float64Var(&tEnd, "time", 0, "end time")
	timeseriesCmd.Flags().IntVar(&samples, "samples", 0, "number of output samples")
	timeseriesCmd.Flags().StringVar(&svgPath, "svg", "", "write the phase portrait as SVG")
	plotFlags(timeseriesCmd)

	nullclinesCmd := &cobra.Command{
		Use:   "nullclines",
		Short: "draw nullclines, the flow field and steady states",
		RunE:  runNullclines,
	}
	studyFlags(nullclinesCmd, "nullcline")
	plotFlags(nullclinesCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "locate limit points over a range of a second parameter",
		RunE:  runSweep,
	}
	studyFlags(sweepCmd, "bifurcation")
	sweepCmd.Flags().StringVar(&freeParam, "free", "", "free parameter")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "a", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 4, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 7, "last value")
	sweepCmd.Flags().IntVar(&sweepN, "n", 7, "number of values")
	sweepCmd.Flags().IntVar(&sweepLimit, "jobs", 4, "concurrent continuations")
	sweepCmd.Flags().StringArrayVar(&bounds, "bound", nil, "parameter bound name=min:max (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarise a stored run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showRun,
	}
	plotFlags(showCmd)

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonOut, "out", "o", "", "output file (stdout if empty)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id] [curve...]",
		Short: "export stored curves as SVG",
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&svgOut, "out", "o", "curves.svg", "output file")
	plotFlags(exportSVGCmd)

	exploreCmd := &cobra.Command{
		Use:   "explore [run_id]",
		Short: "browse stored curves interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exploreRun,
	}
	exploreCmd.Flags().StringVar(&theme, "theme", "default", "colour theme (default, retro, mono)")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and integrators",
		Run: func(cmd *cobra.Command, args []string) {
			reg := experiment.NewRegistry()
			fmt.Println("models:      " + strings.Join(reg.ListModels(), ", "))
			fmt.Println("integrators: " + strings.Join(reg.ListIntegrators(), ", "))
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch <scenario.yaml>",
		Short: "run a scripted sequence of studies",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	basinsCmd := &cobra.Command{
		Use:   "basins",
		Short: "sample which stable equilibrium perturbed states settle onto",
		RunE:  runBasins,
	}
	studyFlags(basinsCmd, "nullcline")
	basinsCmd.Flags().Float64Var(&perturbation, "perturb", 1, "half-width of the perturbation box")
	basinsCmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	basinsCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	basinsCmd.Flags().Float64Var(&tEnd, "time", 0, "integration end time")

	rootCmd.AddCommand(equilibriaCmd, continueCmd, timeseriesCmd, nullclinesCmd, sweepCmd,
		batchCmd, basinsCmd, listCmd, showCmd, exportJSONCmd, exportSVGCmd, exploreCmd, presetsCmd, modelsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var (
	guessFlags []string
	decimals   int
	tEnd       float64
	samples    int

	perturbation float64
	trials       int
	seed         int64
)

// studyFlags registers the flags shared by every command that builds a
// study. def is the preset used when neither --preset nor --config is set.
func studyFlags(cmd *cobra.Command, def string) {
	cmd.Flags().StringVar(&configFile, "config", "", "study config file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", def, "preset configuration")
	cmd.Flags().StringVar(&modelName, "model", "", "model name")
	cmd.Flags().StringArrayVar(&paramSets, "set", nil, "parameter override name=value (repeatable)")
	cmd.Flags().StringVar(&initState, "init", "", "initial state as comma-separated values")
}

func plotFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&xAxis, "x", "", "x axis (parameter or variable name)")
	cmd.Flags().StringVar(&yAxis, "y", "", "y axis (parameter or variable name)")
	cmd.Flags().IntVar(&width, "width", 72, "plot width")
	cmd.Flags().IntVar(&height, "height", 20, "plot height")
}

func newLogger(level string, asJSON bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	if asJSON {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadConfig resolves the study config: --config file, else --preset,
// then command-line flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		// Commands share the preset variable but not its default.
		name := preset
		if f := cmd.Flags().Lookup("preset"); f != nil && !f.Changed {
			name = f.DefValue
		}
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", name, strings.Join(config.ListPresets(), ", "))
		}
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if cfg.Params == nil {
		cfg.Params = map[string]float64{}
	}
	for _, kv := range paramSets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", kv, err)
		}
		cfg.Params[strings.TrimSpace(name)] = v
	}
	if flags.Changed("init") {
		x, err := parseFloats(initState)
		if err != nil {
			return nil, fmt.Errorf("--init: %w", err)
		}
		cfg.InitState = x
	}
	if flags.Changed("free") {
		cfg.Continuation.FreeParam = freeParam
	}
	if flags.Changed("fold-param") {
		cfg.Folds.SecondParam = foldParam
	}
	if flags.Changed("max-points") {
		cfg.Continuation.MaxNumPoints = maxPoints
	}
	if flags.Changed("step") {
		cfg.Continuation.Step.StepSize = stepSize
	}
	if flags.Changed("predictor") {
		cfg.Continuation.Predictor = predictor
	}
	if noFolds {
		cfg.Folds.Enabled = false
	}
	if len(bounds) > 0 {
		if cfg.Continuation.Bounds == nil {
			cfg.Continuation.Bounds = map[string]config.Bound{}
		}
		for _, spec := range bounds {
			name, b, err := parseBound(spec)
			if err != nil {
				return nil, err
			}
			cfg.Continuation.Bounds[name] = b
		}
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Timeseries.T1 = tEnd
	}
	if flags.Changed("samples") {
		cfg.Timeseries.Samples = samples
	}
	if flags.Changed("decimals") {
		cfg.Scan.Decimals = decimals
	}
	if len(guessFlags) > 0 {
		cfg.Scan.Guesses = nil
		for _, g := range guessFlags {
			x, err := parseFloats(g)
			if err != nil {
				return nil, fmt.Errorf("--guess: %w", err)
			}
			cfg.Scan.Guesses = append(cfg.Scan.Guesses, x)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBound(spec string) (string, config.Bound, error) {
	name, rng, ok := strings.Cut(spec, "=")
	if !ok {
		return "", config.Bound{}, fmt.Errorf("--bound %q: want name=min:max", spec)
	}
	lo, hi, ok := strings.Cut(rng, ":")
	if !ok {
		return "", config.Bound{}, fmt.Errorf("--bound %q: want name=min:max", spec)
	}
	minV, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return "", config.Bound{}, fmt.Errorf("--bound %q: %w", spec, err)
	}
	maxV, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return "", config.Bound{}, fmt.Errorf("--bound %q: %w", spec, err)
	}
	return strings.TrimSpace(name), config.Bound{Min: minV, Max: maxV}, nil
}
