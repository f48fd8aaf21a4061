package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestParseBound(t *testing.T) {
	name, b, err := parseBound("a0=-0.5:1")
	if err != nil {
		t.Fatal(err)
	}
	if name != "a0" || b.Min != -0.5 || b.Max != 1 {
		t.Errorf("got %s %+v", name, b)
	}

	for _, bad := range []string{"a0", "a0=1", "a0=x:1", "a0=0:y"} {
		if _, _, err := parseBound(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestParseFloats(t *testing.T) {
	x, err := parseFloats("1, 2.5,-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(x) != 3 || x[0] != 1 || x[1] != 2.5 || x[2] != -3 {
		t.Errorf("got %v", x)
	}
	if _, err := parseFloats("1,,2"); err == nil {
		t.Error("expected error for empty field")
	}
}

func testCommand(def string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	studyFlags(cmd, def)
	cmd.Flags().StringVar(&freeParam, "free", "", "")
	cmd.Flags().IntVar(&maxPoints, "max-points", 0, "")
	cmd.Flags().BoolVar(&noFolds, "no-folds", false, "")
	cmd.Flags().StringArrayVar(&bounds, "bound", nil, "")
	return cmd
}

func TestLoadConfig_PresetDefault(t *testing.T) {
	// Registering a second command moves the shared variable's default.
	testCommand("nullcline")
	cmd := testCommand("cusp")
	testCommand("timeseries")

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "cusp" {
		t.Errorf("model = %s, want cusp", cfg.Model)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cmd := testCommand("cusp")
	for flag, value := range map[string]string{
		"set":        "q=2",
		"init":       "1.5",
		"max-points": "50",
		"no-folds":   "true",
		"bound":      "p=-1:1",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Params["q"] != 2 {
		t.Errorf("q = %g", cfg.Params["q"])
	}
	if len(cfg.InitState) != 1 || cfg.InitState[0] != 1.5 {
		t.Errorf("init = %v", cfg.InitState)
	}
	if cfg.Continuation.MaxNumPoints != 50 {
		t.Errorf("max points = %d", cfg.Continuation.MaxNumPoints)
	}
	if cfg.Folds.Enabled {
		t.Error("folds still enabled")
	}
	if b := cfg.Continuation.Bounds["p"]; b.Min != -1 || b.Max != 1 {
		t.Errorf("bound = %+v", b)
	}
}

func TestLoadConfig_UnknownPreset(t *testing.T) {
	cmd := testCommand("cusp")
	if err := cmd.Flags().Set("preset", "nope"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Error("expected error for unknown preset")
	}
}
