package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/equilibrium"
	"github.com/san-kum/foldsim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "mutual"
	DefaultIntegrator = "rk45"
	DefaultFreeParam  = "a0"
	DefaultFoldParam  = "a"
	DefaultFoldPoints = 100
	DefaultGridSize   = 400
	DefaultQuiverSize = 20
)

// Bound is a closed interval on a parameter.
type Bound = continuation.Bound

// Config is a complete study description as read from YAML.
type Config struct {
	Name         string             `yaml:"name"`
	Model        string             `yaml:"model" validate:"required"`
	Integrator   string             `yaml:"integrator" validate:"required"`
	Params       map[string]float64 `yaml:"params"`
	InitState    []float64          `yaml:"init_state"`
	Solver       equilibrium.Config `yaml:"solver"`
	Continuation ContinuationConfig `yaml:"continuation"`
	Folds        FoldConfig         `yaml:"folds"`
	Scan         ScanConfig         `yaml:"scan"`
	Plane        PlaneConfig        `yaml:"plane"`
	Timeseries   TimeseriesConfig   `yaml:"timeseries"`
	Output       string             `yaml:"output"`
}

type ContinuationConfig struct {
	FreeParam    string                        `yaml:"free_param" validate:"required"`
	Step         continuation.StepConfig       `yaml:"step"`
	MaxNumPoints int                           `yaml:"max_num_points" validate:"gte=1"`
	DetectFolds  bool                          `yaml:"detect_folds"`
	Predictor    string                        `yaml:"predictor" validate:"oneof=secant tangent"`
	Bounds       map[string]continuation.Bound `yaml:"bounds"`
	StateBounds  map[string]continuation.Bound `yaml:"state_bounds,omitempty"`
	FoldTol      float64                       `yaml:"fold_tol" validate:"gt=0"`
	Threshold    float64                       `yaml:"stability_threshold" validate:"lte=0"`
}

// FoldConfig drives the two-parameter continuation of every limit point
// found on the equilibrium curve.
type FoldConfig struct {
	Enabled      bool                          `yaml:"enabled"`
	SecondParam  string                        `yaml:"second_param" validate:"required_if=Enabled true"`
	Step         continuation.StepConfig       `yaml:"step"`
	MaxNumPoints int                           `yaml:"max_num_points" validate:"gte=1"`
	Bounds       map[string]continuation.Bound `yaml:"bounds"`
	StateBounds  map[string]continuation.Bound `yaml:"state_bounds,omitempty"`
}

type ScanConfig struct {
	Guesses  [][]float64 `yaml:"guesses" validate:"dive,min=1"`
	Decimals int         `yaml:"decimals" validate:"gte=0,lte=15"`
}

// PlaneConfig is the phase-plane window for nullclines and the quiver.
type PlaneConfig struct {
	XMin   float64 `yaml:"x_min"`
	XMax   float64 `yaml:"x_max"`
	YMin   float64 `yaml:"y_min"`
	YMax   float64 `yaml:"y_max"`
	N      int     `yaml:"n" validate:"gte=2"`
	Quiver int     `yaml:"quiver" validate:"gte=2"`
}

type TimeseriesConfig struct {
	T0      float64    `yaml:"t0"`
	T1      float64    `yaml:"t1"`
	Samples int        `yaml:"samples" validate:"gte=2"`
	Sim     sim.Config `yaml:"sim"`
}

func (t TimeseriesConfig) Span() sim.Span { return sim.Span{T0: t.T0, T1: t.T1} }

func (t TimeseriesConfig) Grid() []float64 { return sim.Linspace(t.T0, t.T1, t.Samples) }

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Integrator: DefaultIntegrator,
		Params:     map[string]float64{},
		InitState:  []float64{0, 0},
		Solver:     equilibrium.DefaultConfig(),
		Continuation: ContinuationConfig{
			FreeParam:    DefaultFreeParam,
			Step:         continuation.DefaultStepConfig(),
			MaxNumPoints: continuation.DefaultMaxNumPoints,
			DetectFolds:  true,
			Predictor:    "secant",
			FoldTol:      continuation.DefaultFoldTol,
			Threshold:    -1e-9,
		},
		Folds: FoldConfig{
			Enabled:      true,
			SecondParam:  DefaultFoldParam,
			Step:         continuation.DefaultStepConfig(),
			MaxNumPoints: DefaultFoldPoints,
		},
		Scan: ScanConfig{
			Guesses:  [][]float64{{1, 1}, {2, 2}, {3, 3}, {5, 5}},
			Decimals: equilibrium.DefaultDecimals,
		},
		Plane: PlaneConfig{XMin: 0, XMax: 10, YMin: 0, YMax: 10, N: DefaultGridSize, Quiver: DefaultQuiverSize},
		Timeseries: TimeseriesConfig{
			T0:      sim.DefaultSpan.T0,
			T1:      sim.DefaultSpan.T1,
			Samples: sim.DefaultSamples,
			Sim:     sim.DefaultConfig(),
		},
		Output: "runs",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct tag checks, then the cross-field checks the tags
// cannot express. Model and parameter names are checked later, against the
// resolved system.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %q", dynamo.ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Continuation.Step.Validate(); err != nil {
		return fmt.Errorf("continuation: %w", err)
	}
	if c.Folds.Enabled {
		if err := c.Folds.Step.Validate(); err != nil {
			return fmt.Errorf("folds: %w", err)
		}
		if c.Folds.SecondParam == c.Continuation.FreeParam {
			return fmt.Errorf("%w: fold second parameter %q repeats the free parameter",
				dynamo.ErrInvalidConfig, c.Folds.SecondParam)
		}
	}
	for _, bounds := range []map[string]continuation.Bound{
		c.Continuation.Bounds, c.Continuation.StateBounds, c.Folds.Bounds, c.Folds.StateBounds,
	} {
		for name, b := range bounds {
			if b.Min > b.Max {
				return fmt.Errorf("%w: bound on %q is empty", dynamo.ErrInvalidConfig, name)
			}
		}
	}
	if c.Plane.XMin >= c.Plane.XMax || c.Plane.YMin >= c.Plane.YMax {
		return fmt.Errorf("%w: plane window is empty", dynamo.ErrInvalidConfig)
	}
	if c.Timeseries.T1 <= c.Timeseries.T0 {
		return fmt.Errorf("%w: time span [%g, %g] is empty", dynamo.ErrInvalidConfig, c.Timeseries.T0, c.Timeseries.T1)
	}
	return nil
}

// PredictorKind maps the configured predictor name onto the engine's enum.
func (c ContinuationConfig) PredictorKind() continuation.Predictor {
	if c.Predictor == "tangent" {
		return continuation.Tangent
	}
	return continuation.Secant
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Params = cloneMap(c.Params)
	out.InitState = append([]float64(nil), c.InitState...)
	out.Continuation.Bounds = cloneMap(c.Continuation.Bounds)
	out.Folds.Bounds = cloneMap(c.Folds.Bounds)
	out.Continuation.StateBounds = cloneMap(c.Continuation.StateBounds)
	out.Folds.StateBounds = cloneMap(c.Folds.StateBounds)
	out.Scan.Guesses = make([][]float64, len(c.Scan.Guesses))
	for i, g := range c.Scan.Guesses {
		out.Scan.Guesses[i] = append([]float64(nil), g...)
	}
	return &out
}

func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
