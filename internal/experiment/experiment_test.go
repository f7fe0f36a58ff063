package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/dynamo"
)

func TestRegistryListModels(t *testing.T) {
	r := NewRegistry()
	models := r.ListModels()
	if len(models) != 11 {
		t.Errorf("expected 11 models, got %d: %v", len(models), models)
	}
	for _, name := range models {
		if r.Describe(name) == "" {
			t.Errorf("model %s has no description", name)
		}
	}
}

func TestRegistryUnknownModel(t *testing.T) {
	if _, err := NewRegistry().Build("pendulum", config.DefaultConfig()); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestEveryModelPlans(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ListModels() {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Model = name
			cfg.Steps = 50
			setup, err := r.Build(name, cfg)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if _, err := setup.Model.Plan(); err != nil {
				t.Errorf("plan: %v", err)
			}
			if len(setup.Variables) == 0 {
				t.Error("no variables to show")
			}
		})
	}
}

func TestEveryPresetRuns(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ListModels() {
		for _, preset := range config.ListPresets(name) {
			t.Run(name+"/"+preset, func(t *testing.T) {
				cfg := config.GetPreset(name, preset)
				cfg.Steps = min(cfg.Steps, 200)
				e := New(cfg, r)
				if err := e.Setup(); err != nil {
					t.Fatalf("setup: %v", err)
				}
				res, err := e.Run(context.Background())
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				if res.Report.Steps != cfg.Steps {
					t.Errorf("expected %d steps, got %d", cfg.Steps, res.Report.Steps)
				}
				if res.Metrics["steps_total"] != float64(cfg.Steps) {
					t.Errorf("metrics not recorded: %v", res.Metrics)
				}
			})
		}
	}
}

func TestFeedbackLoopSteadyState(t *testing.T) {
	cfg := config.GetPreset("feedback_loop", "proportional")
	cfg.Duration = 5
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.Failed() {
		t.Fatalf("unexpected failures: %v", res.Report.Err())
	}

	out := res.Setup.Variables[1]
	values := out.Values()
	// ka*kb*input/(1+kb*kc) with a time constant of tau/(1+kb*kc).
	want := 1200.0 / 13.0
	if got := values[len(values)-1]; math.Abs(got-want) > 1e-6 {
		t.Errorf("steady state = %v, want %v", got, want)
	}
}

func TestAlgebraicLoopSolution(t *testing.T) {
	cfg := config.GetPreset("algebraic_loop", "contracting")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	x := res.Setup.Variables[1].Values()
	for n := 1; n < len(x); n++ {
		if math.Abs(x[n]-8) > 1e-8 {
			t.Fatalf("x[%d] = %v, want 8", n, x[n])
		}
	}
	if res.Report.ImplicitGroups != 1 {
		t.Errorf("expected 1 implicit group, got %d", res.Report.ImplicitGroups)
	}
}

func TestRCCircuitCharges(t *testing.T) {
	cfg := config.GetPreset("rc_circuit", "charge")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	uc := res.Setup.Variables[1].Values()
	// Five time constants: within 1% of the source voltage.
	if got := uc[len(uc)-1]; math.Abs(got-12) > 0.12 {
		t.Errorf("capacitor voltage = %v, want about 12", got)
	}
	for n := 1; n < len(uc); n++ {
		if uc[n] < uc[n-1] {
			t.Fatalf("capacitor voltage decreased at step %d", n)
		}
	}
}

func TestSaturatedLoopRespectsLimit(t *testing.T) {
	cfg := config.GetPreset("saturated_loop", "clipped")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	a := res.Setup.Variables[3].Values()
	for n, v := range a {
		if math.Abs(v) > 5+1e-6 {
			t.Fatalf("actuator exceeded its limit at step %d: %v", n, v)
		}
	}
}

func TestPIDLoopTracksSetpoint(t *testing.T) {
	cfg := config.GetPreset("pid_loop", "tuned")
	cfg.Duration, cfg.Steps = 20, 2000
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.Failed() {
		t.Fatalf("unexpected failures: %v", res.Report.Err())
	}
	y := res.Setup.Variables[1].Values()
	if got := y[len(y)-1]; math.Abs(got-1) > 0.01 {
		t.Errorf("expected output to settle on the setpoint, got %v", got)
	}
}

func TestVanDerPolLimitCycle(t *testing.T) {
	cfg := config.GetPreset("van_der_pol", "classic")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.Failed() {
		t.Fatalf("unexpected failures: %v", res.Report.Err())
	}
	x := res.Setup.Variables[0].Values()
	peak := 0.0
	for _, v := range x[len(x)/2:] {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak < 1.7 || peak > 2.3 {
		t.Errorf("expected limit cycle amplitude near 2, got %v", peak)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Steps = 0
	if _, err := Run(context.Background(), cfg); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunBeforeSetup(t *testing.T) {
	if _, err := New(config.DefaultConfig(), NewRegistry()).Run(context.Background()); err == nil {
		t.Error("expected error when running before setup")
	}
}

func TestRecord(t *testing.T) {
	cfg := config.GetPreset("first_order", "slow")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec := res.Record()
	if rec.Meta.Model != "first_order" || rec.Meta.Steps != 100 {
		t.Errorf("unexpected metadata %+v", rec.Meta)
	}
	if len(rec.Series) != 2 || rec.Series[0].Name != "e" || rec.Series[1].Name != "s" {
		t.Fatalf("unexpected series %+v", rec.Series)
	}
	if len(rec.Series[1].Values) != len(rec.Times) {
		t.Errorf("series has %d samples, times %d", len(rec.Series[1].Values), len(rec.Times))
	}
	rec.Series[1].Values[0] = 42
	if res.Setup.Variables[1].Values()[0] == 42 {
		t.Error("record shares memory with the variable buffer")
	}
}

func TestFinalValueMetrics(t *testing.T) {
	cfg := config.GetPreset("algebraic_loop", "contracting")
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Metrics["final_x"]; math.Abs(got-8) > 1e-8 {
		t.Errorf("final_x = %v, want 8", got)
	}
	if got := res.Metrics["final_u"]; got != 4 {
		t.Errorf("final_u = %v, want 4", got)
	}
	if res.Metrics["stability"] != 1 {
		t.Errorf("stability = %v, want 1", res.Metrics["stability"])
	}
}
