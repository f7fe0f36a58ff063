package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/storage"
)

func newModelCmd(t *testing.T) *cobra.Command {
	t.Helper()
	preset, configFile, params = "", "", nil
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringVar(&dataDir, "data", ".blocksim", "")
	cmd.Flags().StringVar(&storeKind, "store", "file", "")
	addModelFlags(cmd)
	return cmd
}

func TestParseParams(t *testing.T) {
	got, err := parseParams(map[string]string{"k": "2.5", "tau": "1e-1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["k"] != 2.5 || got["tau"] != 0.1 {
		t.Errorf("unexpected params %v", got)
	}
	if _, err := parseParams(map[string]string{"k": "fast"}); err == nil {
		t.Error("expected error for non numeric value")
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd := newModelCmd(t)
	cfg, err := resolveConfig(cmd, "integrator")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Model != "integrator" || cfg.Steps != config.DefaultSteps {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestResolveConfigFlagsOverridePreset(t *testing.T) {
	cmd := newModelCmd(t)
	if err := cmd.Flags().Set("preset", "slow"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("steps", "40"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("param", "k=3"); err != nil {
		t.Fatal(err)
	}

	cfg, err := resolveConfig(cmd, "first_order")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Steps != 40 {
		t.Errorf("expected steps 40, got %d", cfg.Steps)
	}
	if cfg.Duration != 10 {
		t.Errorf("expected preset duration 10, got %f", cfg.Duration)
	}
	if cfg.Param("k", 0) != 3 || cfg.Param("tau", 0) != 1.254 {
		t.Errorf("unexpected params %v", cfg.Params)
	}
}

func TestResolveConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("model: ignored\nduration: 3\nsteps: 30\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newModelCmd(t)
	if err := cmd.Flags().Set("config", path); err != nil {
		t.Fatal(err)
	}
	cfg, err := resolveConfig(cmd, "rc_circuit")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Model != "rc_circuit" || cfg.Duration != 3 || cfg.Steps != 30 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestResolveConfigUnknownPreset(t *testing.T) {
	cmd := newModelCmd(t)
	if err := cmd.Flags().Set("preset", "nope"); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveConfig(cmd, "first_order"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"file", "sqlite"} {
		st, err := openStore(kind, dir)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		runs, err := st.List()
		if err != nil || len(runs) != 0 {
			t.Errorf("%s: expected empty store, got %v, %v", kind, runs, err)
		}
		st.Close()
	}
}

func TestParseGrid(t *testing.T) {
	names, ranges, err := parseGrid([]string{"kp=1,2, 4", "tau=0.5"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(names) != 2 || names[0] != "kp" || names[1] != "tau" {
		t.Errorf("unexpected names %v", names)
	}
	if len(ranges[0]) != 3 || ranges[0][2] != 4 || ranges[1][0] != 0.5 {
		t.Errorf("unexpected ranges %v", ranges)
	}

	for _, bad := range []string{"kp", "=1,2", "kp=1,x"} {
		if _, _, err := parseGrid([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestFindSeries(t *testing.T) {
	series := []storage.Series{{Name: "u"}, {Name: "y"}}
	if s, err := findSeries(series, ""); err != nil || s.Name != "y" {
		t.Errorf("expected last series by default, got %v, %v", s.Name, err)
	}
	if s, err := findSeries(series, "u"); err != nil || s.Name != "u" {
		t.Errorf("expected u, got %v, %v", s.Name, err)
	}
	if _, err := findSeries(series, "z"); err == nil {
		t.Error("expected error for an unknown variable")
	}
}
