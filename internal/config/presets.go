package config

import (
	"sort"

	"github.com/san-kum/foldsim/internal/continuation"
)

// Presets build fresh configs, so callers may modify what they get back.
var Presets = map[string]func() *Config{
	// Equilibrium curve in a0 with LP detection, then the fold curve of
	// every LP in (a0, a).
	"bifurcation": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "bifurcation"
		cfg.Continuation.Step = continuation.StepConfig{
			StepSize:     0.05,
			MinStepSize:  1e-6,
			MaxStepSize:  0.1,
			GrowFactor:   1.3,
			ShrinkFactor: 0.5,
			FastIters:    3,
			MaxCorrIters: 8,
		}
		cfg.Continuation.MaxNumPoints = 1000
		cfg.Continuation.Bounds = map[string]continuation.Bound{"a0": {Min: -0.5, Max: 1}}
		cfg.Folds.MaxNumPoints = 100
		cfg.Folds.Step.MaxStepSize = 0.1
		cfg.Folds.Bounds = map[string]continuation.Bound{"a0": {Min: -0.5, Max: 1}, "a": {Min: 0, Max: 20}}
		return cfg
	},

	// Multi-guess steady states, nullclines and the quiver on [0, 10]^2.
	"nullcline": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "nullcline"
		cfg.Params = map[string]float64{"a": 9, "b": 9, "d2": 1, "g": 0.1, "k3": 5}
		cfg.Scan.Guesses = [][]float64{{1, 1}, {2, 2}, {3, 3}, {5, 5}}
		cfg.Plane = PlaneConfig{XMin: 0, XMax: 10, YMin: 0, YMax: 10, N: DefaultGridSize, Quiver: DefaultQuiverSize}
		cfg.Folds.Enabled = false
		return cfg
	},

	// Trajectory from the origin over [0, 100] sampled at 10000 points.
	"timeseries": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "timeseries"
		cfg.Params = map[string]float64{"a": 9, "b": 9, "d2": 1, "g": 1, "k3": 2, "k0": 0}
		cfg.InitState = []float64{0, 0}
		cfg.Timeseries.T0, cfg.Timeseries.T1 = 0, 100
		cfg.Timeseries.Samples = 10000
		cfg.Folds.Enabled = false
		return cfg
	},

	// Cusp normal form: two folds in p that meet at the cusp point.
	"cusp": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "cusp"
		cfg.Model = "cusp"
		cfg.InitState = []float64{-1.3247}
		cfg.Continuation.FreeParam = "p"
		cfg.Continuation.Bounds = map[string]continuation.Bound{"p": {Min: -2, Max: 2}}
		cfg.Continuation.MaxNumPoints = 400
		cfg.Folds.SecondParam = "q"
		cfg.Folds.MaxNumPoints = 200
		cfg.Folds.Bounds = map[string]continuation.Bound{"p": {Min: -3, Max: 3}, "q": {Min: -0.5, Max: 2}}
		cfg.Scan.Guesses = [][]float64{{-2}, {0}, {2}}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
