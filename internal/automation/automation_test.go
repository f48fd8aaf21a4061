package automation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `
name: cusp-batch
description: cusp folds at two values of q
steps:
  - name: q1
    preset: cusp
    no_folds: true
  - name: q2
    preset: cusp
    no_folds: true
    params:
      q: 2
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(script))
	require.NoError(t, err)
	assert.Equal(t, "cusp-batch", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 2.0, sc.Steps[1].Params["q"])
	assert.True(t, sc.Steps[0].NoFolds)
}

func TestParseScenarioRejects(t *testing.T) {
	_, err := ParseScenario([]byte("name: empty\nsteps: []\n"))
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)

	_, err = ParseScenario([]byte("steps:\n  - name: nothing\n"))
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)

	_, err = ParseScenario([]byte("steps: {"))
	assert.Error(t, err)
}

func TestStepBuild(t *testing.T) {
	cfg, err := ScenarioStep{Name: "x", Preset: "cusp", Params: map[string]float64{"q": 3}, NoFolds: true}.Build()
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Name)
	assert.Equal(t, 3.0, cfg.Params["q"])
	assert.False(t, cfg.Folds.Enabled)

	_, err = ScenarioStep{Preset: "missing"}.Build()
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)

	_, err = ScenarioStep{Config: "does/not/exist.yaml"}.Build()
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(script))
	require.NoError(t, err)
	sc.Steps = append(sc.Steps, ScenarioStep{Name: "bad", Preset: "cusp", Params: map[string]float64{"nope": 1}})

	var sunk []string
	results, err := RunScenario(context.Background(), sc, nil, nil, func(step int, s *experiment.Study) error {
		sunk = append(sunk, s.Config().Name)
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, dynamo.ErrUnknownParam)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"q1", "q2"}, sunk)

	for _, r := range results[:2] {
		assert.NoError(t, r.Err)
		assert.Equal(t, 1, r.Curves)
		assert.Equal(t, 2, r.LimitPoints)
	}
	assert.Error(t, results[2].Err)
	assert.Zero(t, results[2].Curves)
}

func TestRunScenarioSinkError(t *testing.T) {
	sc, err := ParseScenario([]byte(script))
	require.NoError(t, err)
	boom := errors.New("disk full")

	results, err := RunScenario(context.Background(), sc, nil, nil, func(int, *experiment.Study) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, boom)
}

func TestRunScenarioCancelled(t *testing.T) {
	sc, err := ParseScenario([]byte(script))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunScenario(ctx, sc, nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}

// bistable is the cusp at p = 0, q = 1: stable x = ±1, unstable x = 0.
func bistable(t *testing.T) *experiment.Study {
	t.Helper()
	cfg := config.GetPreset("cusp")
	cfg.Params = map[string]float64{"p": 0, "q": 1}
	cfg.InitState = []float64{1}
	cfg.Folds.Enabled = false
	cfg.Timeseries.T1 = 20
	study, err := experiment.NewStudy(cfg, nil, nil)
	require.NoError(t, err)
	return study
}

func TestRunBasins(t *testing.T) {
	study := bistable(t)

	survey, err := RunBasins(context.Background(), study, BasinConfig{
		BaseState:    []float64{2},
		Perturbation: 0.5,
		NumTrials:    20,
		Seed:         7,
	})
	require.NoError(t, err)
	require.Len(t, survey.Attractors, 2)
	assert.InDelta(t, -1, survey.Attractors[0].State[0], 1e-8)
	assert.InDelta(t, 1, survey.Attractors[1].State[0], 1e-8)

	assert.Equal(t, []int{0, 20, 0}, survey.Counts())
	for _, tr := range survey.Trials {
		assert.InDelta(t, 2, tr.InitState[0], 0.5)
		assert.InDelta(t, 1, tr.Final[0], DefaultBasinTolerance)
	}
}

func TestRunBasinsSplits(t *testing.T) {
	study := bistable(t)

	survey, err := RunBasins(context.Background(), study, BasinConfig{
		BaseState:    []float64{0},
		Perturbation: 1,
		NumTrials:    50,
		Seed:         11,
	})
	require.NoError(t, err)

	for _, tr := range survey.Trials {
		if tr.InitState[0] == 0 {
			continue
		}
		want := 0
		if tr.InitState[0] > 0 {
			want = 1
		}
		assert.Equal(t, want, tr.Attractor, "x0 = %g", tr.InitState[0])
		assert.InDelta(t, 1, math.Abs(tr.Final[0]), DefaultBasinTolerance)
	}
	counts := survey.Counts()
	assert.Equal(t, 50, counts[0]+counts[1]+counts[2])
	assert.Positive(t, counts[0])
	assert.Positive(t, counts[1])
}

func TestRunBasinsRejects(t *testing.T) {
	study := bistable(t)
	ctx := context.Background()

	_, err := RunBasins(ctx, study, BasinConfig{BaseState: []float64{0, 0}, NumTrials: 1})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

	_, err = RunBasins(ctx, study, BasinConfig{BaseState: []float64{0}})
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
}
