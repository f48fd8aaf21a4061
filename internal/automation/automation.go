package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/equilibrium"
	"github.com/san-kum/foldsim/internal/experiment"
	"github.com/san-kum/foldsim/internal/stability"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted batch of studies.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps" validate:"min=1,dive"`
}

// ScenarioStep builds one study from a preset or a config file, then
// applies its overrides.
type ScenarioStep struct {
	Name      string             `yaml:"name"`
	Preset    string             `yaml:"preset" validate:"required_without=Config"`
	Config    string             `yaml:"config"`
	Model     string             `yaml:"model"`
	FreeParam string             `yaml:"free_param"`
	Params    map[string]float64 `yaml:"params"`
	NoFolds   bool               `yaml:"no_folds"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if err := validate.Struct(&sc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s fails %q", dynamo.ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	return &sc, nil
}

// Build resolves the step into a validated config.
func (st ScenarioStep) Build() (*config.Config, error) {
	var cfg *config.Config
	if st.Config != "" {
		loaded, err := config.Load(st.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.GetPreset(st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", dynamo.ErrInvalidConfig, st.Preset)
		}
	}

	if st.Name != "" {
		cfg.Name = st.Name
	}
	if st.Model != "" {
		cfg.Model = st.Model
	}
	if st.FreeParam != "" {
		cfg.Continuation.FreeParam = st.FreeParam
	}
	if cfg.Params == nil {
		cfg.Params = map[string]float64{}
	}
	for k, v := range st.Params {
		cfg.Params[k] = v
	}
	if st.NoFolds {
		cfg.Folds.Enabled = false
	}
	return cfg, cfg.Validate()
}

// StepResult summarises one finished step.
type StepResult struct {
	Step        int
	Name        string
	Curves      int
	LimitPoints int
	Err         error
}

// Sink receives every study after it has run, for saving or printing.
type Sink func(step int, study *experiment.Study) error

// RunScenario runs every step in order. A failing step is recorded and the
// scenario moves on; only cancellation stops it early. The returned error
// joins the step errors.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry, log *zap.Logger, sink Sink) ([]StepResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]StepResult, 0, len(sc.Steps))
	var errs []error

	for i, step := range sc.Steps {
		res := StepResult{Step: i + 1, Name: step.Name}
		log.Info("running step", zap.Int("step", i+1), zap.Int("of", len(sc.Steps)), zap.String("name", step.Name))

		study, err := runStep(ctx, step, reg, log)
		if study != nil {
			res.Name = study.Config().Name
			res.Curves = len(study.IDs())
			if eq, ok := study.Curve(experiment.EquilibriumCurveID); ok {
				res.LimitPoints = len(eq.LimitPoints())
			}
			if sink != nil && res.Curves > 0 {
				if serr := sink(i+1, study); serr != nil {
					err = errors.Join(err, serr)
				}
			}
		}
		if err != nil {
			res.Err = err
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
		results = append(results, res)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, errors.Join(errs...)
}

func runStep(ctx context.Context, step ScenarioStep, reg *experiment.Registry, log *zap.Logger) (*experiment.Study, error) {
	cfg, err := step.Build()
	if err != nil {
		return nil, err
	}
	study, err := experiment.NewStudy(cfg, reg, log)
	if err != nil {
		return nil, err
	}
	return study, study.Run(ctx)
}

// BasinConfig drives a Monte Carlo survey of which stable equilibrium
// perturbed initial states settle onto.
type BasinConfig struct {
	BaseState    []float64
	Perturbation float64
	NumTrials    int
	Seed         int64
	// Tolerance is the distance within which a final state counts as
	// having reached an equilibrium.
	Tolerance float64
}

const DefaultBasinTolerance = 1e-3

// BasinResult is one trial. Attractor indexes the stable equilibria of
// the survey, or is -1 when the trajectory settled on none of them.
type BasinResult struct {
	Trial     int
	InitState dynamo.State
	Final     dynamo.State
	Attractor int
	Err       error
}

// Survey is the outcome of RunBasins.
type Survey struct {
	Attractors []equilibrium.Equilibrium
	Trials     []BasinResult
}

// Counts returns the number of trials per attractor; index len(Attractors)
// counts the unresolved trials.
func (s *Survey) Counts() []int {
	counts := make([]int, len(s.Attractors)+1)
	for _, t := range s.Trials {
		if t.Attractor < 0 {
			counts[len(s.Attractors)]++
		} else {
			counts[t.Attractor]++
		}
	}
	return counts
}

// RunBasins scans the study's guesses for stable equilibria, then
// integrates NumTrials perturbations of BaseState over the configured span
// and matches each final state to the nearest attractor.
func RunBasins(ctx context.Context, study *experiment.Study, cfg BasinConfig) (*Survey, error) {
	sys := study.System()
	if len(cfg.BaseState) != sys.StateDim() {
		return nil, fmt.Errorf("%w: base state has %d components, system has %d",
			dynamo.ErrDimensionMismatch, len(cfg.BaseState), sys.StateDim())
	}
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("%w: need at least one trial", dynamo.ErrInvalidConfig)
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultBasinTolerance
	}

	sc := study.Config().Scan
	guesses := make([]dynamo.State, len(sc.Guesses))
	for i, g := range sc.Guesses {
		guesses[i] = dynamo.State(g)
	}
	survey := &Survey{}
	for _, eq := range study.Solver().Scan(sys, guesses, study.Params(), sc.Decimals).Equilibria {
		if eq.Stability == stability.Stable {
			survey.Attractors = append(survey.Attractors, eq)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	tEnd := []float64{study.Config().Timeseries.T1}

	for trial := 0; trial < cfg.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return survey, err
		}

		init := make(dynamo.State, len(cfg.BaseState))
		for i, v := range cfg.BaseState {
			init[i] = v + (rng.Float64()-0.5)*2*cfg.Perturbation
		}

		res := BasinResult{Trial: trial, InitState: init, Attractor: -1}
		out, err := study.Simulate(ctx, init, tEnd)
		if err != nil {
			res.Err = err
		} else {
			res.Final = out.Final()
			res.Attractor = nearest(survey.Attractors, res.Final, cfg.Tolerance)
		}
		survey.Trials = append(survey.Trials, res)
	}
	return survey, nil
}

func nearest(attractors []equilibrium.Equilibrium, x dynamo.State, tol float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, eq := range attractors {
		if d := eq.State.Sub(x).Norm(); d < bestDist {
			best, bestDist = i, d
		}
	}
	if bestDist > tol {
		return -1
	}
	return best
}
