package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/foldsim/internal/analysis"
	"github.com/san-kum/foldsim/internal/automation"
	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/experiment"
	"github.com/san-kum/foldsim/internal/export"
	"github.com/san-kum/foldsim/internal/metrics"
	"github.com/san-kum/foldsim/internal/stability"
	"github.com/san-kum/foldsim/internal/storage"
	"github.com/san-kum/foldsim/internal/sweep"
	"github.com/san-kum/foldsim/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newStudy(cmd *cobra.Command) (*experiment.Study, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return experiment.NewStudy(cfg, nil, log)
}

func runEquilibria(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}
	cfg := study.Config()

	guesses := make([]dynamo.State, len(cfg.Scan.Guesses))
	for i, g := range cfg.Scan.Guesses {
		guesses[i] = dynamo.State(g)
	}
	res := study.Solver().Scan(study.System(), guesses, study.Params(), cfg.Scan.Decimals)

	fmt.Printf("model: %s  params: %s\n", cfg.Model, study.Params())
	fmt.Print(viz.RenderSteady(res, study.System().VarNames()))
	return nil
}

func runContinue(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}
	cfg := study.Config()
	sys := study.System()

	ms := metrics.Standard()
	metrics.Attach(study.Engine(), ms...)

	runErr := study.Run(cmd.Context())
	if runErr != nil && len(study.IDs()) == 0 {
		return runErr
	}

	curves := make([]*continuation.Curve, 0, len(study.IDs()))
	for _, id := range study.IDs() {
		c, _ := study.Curve(id)
		curves = append(curves, c)
		fmt.Print(viz.RenderSummary(c))
		fmt.Println()
	}

	if eq, ok := study.Curve(experiment.EquilibriumCurveID); ok {
		for _, lp := range eq.LimitPoints() {
			fmt.Println(experiment.FormatLimitPoint(lp, sys.VarNames()))
		}
		fmt.Println()
	}

	for _, c := range curves {
		if err := printDiagrams(os.Stdout, c); err != nil {
			return err
		}
	}

	snapshot := metrics.Snapshot(ms...)
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name()
	}
	fmt.Println(viz.RenderMetrics(snapshot, names))

	if svgPath != "" {
		eq, ok := study.Curve(experiment.EquilibriumCurveID)
		if ok {
			x, y := axesFor(eq)
			svg, err := export.CurveToSVG(eq, x, y, 800, 600)
			if err != nil {
				return err
			}
			if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", svgPath)
		}
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.NewRunMetadata(cfg.Name, cfg.Model, study.Params(), sys.VarNames(), curves)
		meta.Metrics = snapshot
		id, err := st.Save(meta, curves)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s\n", id)
	}

	if runErr != nil {
		log.Warn("study finished with errors", zap.Error(runErr))
	}
	return runErr
}

// axesFor picks the --x/--y flags, else the first free parameter against
// the second free parameter (fold curves) or the first state variable.
func axesFor(c *continuation.Curve) (string, string) {
	x, y := xAxis, yAxis
	if x == "" && len(c.FreeParams) > 0 {
		x = c.FreeParams[0]
	}
	if y == "" {
		switch {
		case c.Kind == continuation.FoldCurve && len(c.FreeParams) > 1:
			y = c.FreeParams[1]
		case len(c.VarNames) > 0:
			y = c.VarNames[0]
		}
	}
	return x, y
}

// printDiagrams draws c against every state variable, or only against
// the requested axes when --y is set or c is a fold curve.
func printDiagrams(w io.Writer, c *continuation.Curve) error {
	x, y := axesFor(c)
	ys := []string{y}
	if yAxis == "" && c.Kind == continuation.EquilibriumCurve {
		ys = c.VarNames
	}
	for _, y := range ys {
		out, err := analysis.DiagramToASCII(c, x, y, width, height)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
	}
	return nil
}

func runTimeseries(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}
	res, err := study.Timeseries(cmd.Context())
	if res == nil {
		return err
	}
	if err != nil {
		log.Warn("integration stopped early", zap.Error(err))
	}

	names := study.System().VarNames()
	for i, name := range names {
		data := res.Component(i)
		if len(data) == 0 {
			continue
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("%s(t)", name)),
		))
		fmt.Printf("%s %s\n\n", name, viz.Sparkline(data, width))
	}

	fmt.Printf("samples: %d  steps: %d  rejected: %d  final: %v\n",
		len(res.Times), res.Steps, res.Rejected, []float64(res.Final()))

	if svgPath != "" && len(names) >= 2 {
		portrait := analysis.TrajectoryPortrait(res, 0, 1)
		if portrait != nil {
			svg := export.TrajectoryToSVG(portrait.Points, 600, 600, "#00ff88")
			if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", svgPath)
		}
	}
	return err
}

func runNullclines(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}
	pp, err := study.PhasePlane()
	if err != nil {
		return err
	}

	var stable, unstable []analysis.Point2
	for _, eq := range pp.Steady.Equilibria {
		p := analysis.Point2{X: eq.State[pp.Grid.XIndex], Y: eq.State[pp.Grid.YIndex]}
		if eq.Stability == stability.Stable {
			stable = append(stable, p)
		} else {
			unstable = append(unstable, p)
		}
	}

	fmt.Print(analysis.PlaneToASCII(pp.Grid, pp.Field, pp.Nullclines, stable, unstable, width, height))
	fmt.Println()
	for _, nc := range pp.Nullclines {
		fmt.Printf("d%s/dt = 0: %d points\n", nc.Name, len(nc.Points))
	}
	fmt.Print(viz.RenderSteady(pp.Steady, study.System().VarNames()))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}

	base := study.EquilibriumRequest()
	values := sweep.Range(sweepFrom, sweepTo, sweepN)
	rows, err := sweep.NewFoldScan(sweepParam, values).WithLimit(sweepLimit).Scan(cmd.Context(), study.Engine(), base)
	if err != nil && rows == nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPOINTS\tLIMIT POINTS (%s)\tERROR\n", strings.ToUpper(sweepParam), base.FreeParams[0])
	for _, row := range rows {
		lps := make([]string, len(row.LimitPoints))
		for i, lp := range row.LimitPoints {
			lps[i] = fmt.Sprintf("%.6f", lp.Value)
		}
		errText := ""
		if row.Err != nil {
			errText = row.Err.Error()
		}
		fmt.Fprintf(w, "%.4g\t%d\t%s\t%s\n", row.Value, row.Points, strings.Join(lps, ", "), errText)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
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
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tTIME\tCURVES\tLPS")
	for _, run := range runs {
		ids := make([]string, len(run.Curves))
		lps := 0
		for i, c := range run.Curves {
			ids[i] = c.ID
			lps += len(c.LimitPoints)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			run.ID,
			run.Name,
			run.Model,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			strings.Join(ids, ","),
			lps,
		)
	}
	return w.Flush()
}

// resolveRun loads the run named by args[0], or the latest run.
func resolveRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) > 0 && args[0] != "" && args[0] != "latest" {
		return st.Load(args[0])
	}
	return st.Latest()
}

func loadCurves(st *storage.Store, meta *storage.RunMetadata, ids []string) ([]*continuation.Curve, error) {
	if len(ids) == 0 {
		for _, c := range meta.Curves {
			ids = append(ids, c.ID)
		}
	}
	curves := make([]*continuation.Curve, 0, len(ids))
	for _, id := range ids {
		c, err := st.LoadCurve(meta.ID, id)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	return curves, nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	curves, err := loadCurves(st, meta, nil)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\nmodel: %s  %s\ncreated: %s\n\n",
		meta.ID, meta.Model, meta.Base(), meta.Timestamp.Local().Format("2006-01-02 15:04:05"))
	for _, c := range curves {
		fmt.Print(viz.RenderSummary(c))
		if err := printDiagrams(os.Stdout, c); err != nil {
			return err
		}
	}
	if len(meta.Metrics) > 0 {
		names := make([]string, 0, len(meta.Metrics))
		for _, m := range metrics.Standard() {
			if _, ok := meta.Metrics[m.Name()]; ok {
				names = append(names, m.Name())
			}
		}
		fmt.Println(viz.RenderMetrics(meta.Metrics, names))
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if jsonOut != "" {
		f, err := os.Create(jsonOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return st.ExportRunJSON(w, meta.ID)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	var ids []string
	if len(args) > 1 {
		ids = args[1:]
	}
	curves, err := loadCurves(st, meta, ids)
	if err != nil {
		return err
	}
	if len(curves) == 0 {
		return fmt.Errorf("run %s has no curves", meta.ID)
	}

	x, y := xAxis, yAxis
	if x == "" {
		x = curves[0].FreeParams[0]
	}
	if y == "" && len(curves[0].VarNames) > 0 {
		y = curves[0].VarNames[0]
	}
	svg, err := export.CurvesToSVG(curves, x, y, 800, 600)
	if err != nil {
		return err
	}
	if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s vs %s, %d curves)\n", svgOut, y, x, len(curves))
	return nil
}

func exploreRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	curves, err := loadCurves(st, meta, nil)
	if err != nil {
		return err
	}
	p := tea.NewProgram(viz.NewExplorer(curves).WithTheme(theme), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODEL\tFREE\tFOLDS")
		for _, name := range config.ListPresets() {
			cfg := config.GetPreset(name)
			folds := "-"
			if cfg.Folds.Enabled {
				folds = cfg.Continuation.FreeParam + "," + cfg.Folds.SecondParam
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, cfg.Model, cfg.Continuation.FreeParam, folds)
		}
		return w.Flush()
	}

	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset %q (have %s)", args[0], strings.Join(config.ListPresets(), ", "))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if sc.Name != "" {
		fmt.Printf("scenario: %s\n", sc.Name)
	}

	var sink automation.Sink
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		sink = func(step int, study *experiment.Study) error {
			id, err := saveStudy(st, study)
			if err != nil {
				return err
			}
			log.Info("saved run", zap.Int("step", step), zap.String("id", id))
			return nil
		}
	}

	results, runErr := automation.RunScenario(cmd.Context(), sc, nil, log, sink)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tCURVES\tLPS\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", r.Step, r.Name, r.Curves, r.LimitPoints, errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func saveStudy(st *storage.Store, study *experiment.Study) (string, error) {
	cfg := study.Config()
	curves := make([]*continuation.Curve, 0, len(study.IDs()))
	for _, id := range study.IDs() {
		c, _ := study.Curve(id)
		curves = append(curves, c)
	}
	meta := storage.NewRunMetadata(cfg.Name, cfg.Model, study.Params(), study.System().VarNames(), curves)
	return st.Save(meta, curves)
}

func runBasins(cmd *cobra.Command, args []string) error {
	study, err := newStudy(cmd)
	if err != nil {
		return err
	}

	survey, err := automation.RunBasins(cmd.Context(), study, automation.BasinConfig{
		BaseState:    study.Config().InitState,
		Perturbation: perturbation,
		NumTrials:    trials,
		Seed:         seed,
	})
	if survey == nil {
		return err
	}

	names := study.System().VarNames()
	counts := survey.Counts()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTRACTOR\tSTATE\tTRIALS\tSHARE")
	for i, eq := range survey.Attractors {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f%%\n", i+1, formatState(names, eq.State), counts[i],
			100*float64(counts[i])/float64(len(survey.Trials)))
	}
	last := counts[len(counts)-1]
	fmt.Fprintf(w, "-\tunresolved\t%d\t%.1f%%\n", last, 100*float64(last)/float64(len(survey.Trials)))
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func formatState(names []string, x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		name := fmt.Sprintf("x%d", i)
		if i < len(names) {
			name = names[i]
		}
		parts[i] = fmt.Sprintf("%s=%.6f", name, v)
	}
	return strings.Join(parts, " ")
}
