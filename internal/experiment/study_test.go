package experiment

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/stability"
)

func TestRegistry_Lists(t *testing.T) {
	r := NewRegistry()

	models := r.ListModels()
	want := []string{"cusp", "fold", "linear", "mutual"}
	if strings.Join(models, ",") != strings.Join(want, ",") {
		t.Errorf("models = %v, want %v", models, want)
	}
	integs := r.ListIntegrators()
	if strings.Join(integs, ",") != "euler,heun,rk4,rk45" {
		t.Errorf("integrators = %v", integs)
	}

	for _, name := range models {
		sys, err := r.GetModel(name)
		if err != nil || sys == nil {
			t.Fatalf("GetModel(%q): %v", name, err)
		}
	}
}

func TestRegistry_Unknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetModel("pendulum"); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := r.GetIntegrator("verlet"); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRegistry_FreshIntegrators(t *testing.T) {
	r := NewRegistry()
	a, _ := r.GetIntegrator("rk4")
	b, _ := r.GetIntegrator("rk4")
	if a == b {
		t.Error("expected a new integrator per call")
	}
}

func TestNewStudy_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"unknown model", func(c *config.Config) { c.Model = "pendulum" }, dynamo.ErrInvalidConfig},
		{"unknown override", func(c *config.Config) { c.Params = map[string]float64{"zeta": 1} }, dynamo.ErrUnknownParam},
		{"unknown free param", func(c *config.Config) { c.Continuation.FreeParam = "zeta" }, dynamo.ErrUnknownParam},
		{"unknown fold param", func(c *config.Config) { c.Folds.SecondParam = "zeta" }, dynamo.ErrUnknownParam},
		{"state length", func(c *config.Config) { c.InitState = []float64{0} }, dynamo.ErrDimensionMismatch},
		{"invalid config", func(c *config.Config) { c.Continuation.MaxNumPoints = 0 }, dynamo.ErrInvalidConfig},
		{"unknown state bound", func(c *config.Config) {
			c.Continuation.StateBounds = map[string]continuation.Bound{"z": {Min: 0, Max: 1}}
		}, dynamo.ErrInvalidConfig},
		{"unknown fold state bound", func(c *config.Config) {
			c.Folds.StateBounds = map[string]continuation.Bound{"z": {Min: 0, Max: 1}}
		}, dynamo.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if _, err := NewStudy(cfg, nil, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewStudy_CopiesConfig(t *testing.T) {
	cfg := config.GetPreset("nullcline")
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Params["g"] = 3
	if s.Config().Params["g"] != 0.1 {
		t.Error("study config changed with the caller's copy")
	}
	if s.Params().Get("g") != 0.1 || s.Params().Get("a") != 9 {
		t.Errorf("overrides not applied: %v", s.Params())
	}
}

func TestStudy_CuspPipeline(t *testing.T) {
	s, err := NewStudy(config.GetPreset("cusp"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	ids := s.IDs()
	if strings.Join(ids, ",") != "EQ1,SN1,SN2" {
		t.Fatalf("ids = %v", ids)
	}

	eq, ok := s.Curve(EquilibriumCurveID)
	if !ok || eq.Kind != continuation.EquilibriumCurve {
		t.Fatal("missing equilibrium curve")
	}
	lps := eq.LimitPoints()
	if len(lps) != 2 {
		t.Fatalf("expected 2 limit points, got %d", len(lps))
	}
	want := 2 / (3 * math.Sqrt(3))
	if math.Abs(math.Abs(lps[0].Value)-want) > 1e-6 || math.Abs(math.Abs(lps[1].Value)-want) > 1e-6 {
		t.Errorf("limit points at %g, %g, want ±%g", lps[0].Value, lps[1].Value, want)
	}

	for _, id := range []string{"SN1", "SN2"} {
		c, ok := s.Curve(id)
		if !ok {
			t.Fatalf("missing %s", id)
		}
		if c.Kind != continuation.FoldCurve {
			t.Errorf("%s kind = %v", id, c.Kind)
		}
		if c.Len() < 10 {
			t.Errorf("%s has only %d points", id, c.Len())
		}
		for _, pt := range c.Points() {
			p, q := pt.Params.Get("p"), pt.Params.Get("q")
			if math.Abs(27*p*p-4*q*q*q) > 1e-5 {
				t.Fatalf("%s point %d off the fold set: p=%g q=%g", id, pt.Index, p, q)
			}
		}
	}
}

func TestStudy_StateBounds(t *testing.T) {
	cfg := config.GetPreset("cusp")
	cfg.Folds.Enabled = false
	cfg.Continuation.StateBounds = map[string]continuation.Bound{"x": {Min: -1.5, Max: 1}}
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	req := s.EquilibriumRequest()
	if len(req.Box.State) != 1 || req.Box.State[0] != (continuation.Bound{Min: -1.5, Max: 1}) {
		t.Fatalf("state box = %+v", req.Box.State)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	eq, _ := s.Curve(EquilibriumCurveID)
	for _, seg := range eq.Segments() {
		if seg.Termination != continuation.BoundaryReached {
			t.Errorf("%v ended with %v", seg.Direction, seg.Termination)
		}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range eq.Points() {
		lo, hi = math.Min(lo, pt.State[0]), math.Max(hi, pt.State[0])
	}
	if math.Abs(lo+1.5) > 1e-9 || math.Abs(hi-1) > 1e-9 {
		t.Errorf("x spans [%g, %g], want [-1.5, 1]", lo, hi)
	}
}

func TestStudy_StateBoundsRejectStart(t *testing.T) {
	cfg := config.GetPreset("cusp")
	cfg.Continuation.StateBounds = map[string]continuation.Bound{"x": {Min: 0, Max: 1}}
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if len(s.IDs()) != 0 {
		t.Errorf("ids = %v", s.IDs())
	}
}

func TestStudy_CurvesReturnsCopy(t *testing.T) {
	cfg := config.GetPreset("cusp")
	cfg.Folds.Enabled = false
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	m := s.Curves()
	if len(m) != 1 {
		t.Fatalf("expected only EQ1, got %d curves", len(m))
	}
	delete(m, EquilibriumCurveID)
	if _, ok := s.Curve(EquilibriumCurveID); !ok {
		t.Error("deleting from the copy removed the curve from the study")
	}
}

func TestStudy_RunCancelled(t *testing.T) {
	s, err := NewStudy(config.GetPreset("cusp"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, ok := s.Curve("SN1"); ok {
		t.Error("fold curves should not run after cancellation")
	}
}

func TestStudy_Start(t *testing.T) {
	s, err := NewStudy(config.GetPreset("cusp"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	eq, err := s.Start()
	if err != nil {
		t.Fatal(err)
	}
	x := eq.State[0]
	if math.Abs(-1+x-x*x*x) > 1e-8 {
		t.Errorf("start residual too large at x=%g", x)
	}
	if eq.Stability != stability.Stable {
		t.Errorf("outer cusp branch should be stable, got %v", eq.Stability)
	}
}

func TestStudy_PhasePlane(t *testing.T) {
	cfg := config.GetPreset("nullcline")
	cfg.Plane.N = 60
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	pp, err := s.PhasePlane()
	if err != nil {
		t.Fatal(err)
	}

	if len(pp.Nullclines) != 2 {
		t.Fatalf("expected 2 nullclines, got %d", len(pp.Nullclines))
	}
	if len(pp.Field) != 20*20 {
		t.Errorf("expected a 20×20 quiver, got %d arrows", len(pp.Field))
	}
	if len(pp.Steady.Equilibria) == 0 {
		t.Fatal("no steady states found")
	}
	for _, eq := range pp.Steady.Equilibria {
		f := s.System().Derive(eq.State, s.Params())
		if f.Norm() > 1e-7 {
			t.Errorf("steady state %v has residual %g", eq.State, f.Norm())
		}
	}
}

func TestStudy_Timeseries(t *testing.T) {
	cfg := config.GetPreset("timeseries")
	cfg.Timeseries.T1 = 10
	cfg.Timeseries.Samples = 101
	s, err := NewStudy(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Timeseries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Times) != 101 {
		t.Fatalf("expected 101 samples, got %d", len(res.Times))
	}
	if res.Times[100] != 10 {
		t.Errorf("last sample at %g", res.Times[100])
	}
	final := res.Final()
	if final[0] <= 0 || final[1] <= 0 {
		t.Errorf("basal production should drive both components positive, got %v", final)
	}
}

func TestFormatLimitPoint(t *testing.T) {
	lp := continuation.LimitPoint{
		Label: "LP1",
		Param: "a0",
		Value: 0.0330671,
		Point: continuation.Point{State: dynamo.State{0.5, 1.25}},
	}
	got := FormatLimitPoint(lp, []string{"x", "y"})
	want := "LP1: a0 = 0.033067, x = 0.500000, y = 1.250000"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = FormatLimitPoint(lp, nil)
	if !strings.Contains(got, "x1 = 1.250000") {
		t.Errorf("expected positional names, got %q", got)
	}
}
