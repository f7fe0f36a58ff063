package config

import "sort"

var Presets = map[string]map[string]*Config{
	"first_order": {
		"slow": {
			Model: "first_order", Duration: 10, Steps: 100,
			Params: map[string]float64{"k": 1, "tau": 1.254},
		},
		"fast": {
			Model: "first_order", Duration: 2, Steps: 400,
			Params: map[string]float64{"k": 2, "tau": 0.1},
		},
	},
	"integrator": {
		"unit_step": {
			Model: "integrator", Duration: 2, Steps: 200,
			Params: map[string]float64{"amplitude": 1, "k": 1},
		},
	},
	"differentiator": {
		"ramp": {
			Model: "differentiator", Duration: 2, Steps: 200,
			Params: map[string]float64{"slope": 2.5},
		},
	},
	"second_order": {
		"underdamped": {
			Model: "second_order", Duration: 5, Steps: 200,
			Params: map[string]float64{"amplitude": 4, "w": 5, "q": 0.3, "w0": 3},
		},
		"overdamped": {
			Model: "second_order", Duration: 10, Steps: 500,
			Params: map[string]float64{"amplitude": 1, "w": 1, "q": 2, "w0": 3},
		},
	},
	"feedback_loop": {
		"proportional": {
			Model: "feedback_loop", Duration: 3, Steps: 1000,
			Params: map[string]float64{"input": 100, "ka": 3, "kb": 4, "kc": 3, "tau": 1},
		},
		"weak": {
			Model: "feedback_loop", Duration: 10, Steps: 1000,
			Params: map[string]float64{"input": 100, "ka": 3, "kb": 0.5, "kc": 3, "tau": 1},
		},
	},
	"algebraic_loop": {
		"contracting": {
			Model: "algebraic_loop", Duration: 1, Steps: 50,
			Params: map[string]float64{"gain": 0.5, "amplitude": 4},
		},
		"expanding": {
			Model: "algebraic_loop", Duration: 1, Steps: 50,
			Params: map[string]float64{"gain": 3, "amplitude": 4},
		},
	},
	"saturated_loop": {
		"clipped": {
			Model: "saturated_loop", Duration: 10, Steps: 1000,
			Params: map[string]float64{"setpoint": 10, "kp": 20, "limit": 5, "tau": 1},
		},
	},
	"pid_loop": {
		"tuned": {
			Model: "pid_loop", Duration: 10, Steps: 1000,
			Params: map[string]float64{"setpoint": 1, "kp": 2, "ki": 1, "kd": 0.1, "tau": 1},
		},
		"proportional": {
			Model: "pid_loop", Duration: 10, Steps: 1000,
			Params: map[string]float64{"setpoint": 1, "kp": 4, "ki": 0, "kd": 0, "tau": 1},
		},
	},
	"van_der_pol": {
		"classic": {
			Model: "van_der_pol", Duration: 20, Steps: 2000,
			Params: map[string]float64{"mu": 1, "x0": 2},
		},
		"relaxation": {
			Model: "van_der_pol", Duration: 40, Steps: 4000,
			Params: map[string]float64{"mu": 5, "x0": 2},
		},
	},
	"rc_circuit": {
		"charge": {
			Model: "rc_circuit", Duration: 0.5, Steps: 500,
			Params: map[string]float64{"u": 12, "r": 10, "c": 0.01},
		},
	},
	"friction_brake": {
		"pulse": {
			Model: "friction_brake", Duration: 100, Steps: 400,
			Params: map[string]float64{"cmax": 300, "inertia": 1, "viscous": 0.01, "input": 100, "resistant": -80},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	if out.Solver == (SolverConfig{}) {
		out.Solver = SolverConfig{Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
	}
	if out.Store == (StoreConfig{}) {
		out.Store = StoreConfig{Kind: DefaultStoreKind, Path: DefaultStorePath}
	}
	return out
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
