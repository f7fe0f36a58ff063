package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/metrics"
	"github.com/san-kum/blocksim/internal/sim"
	"github.com/san-kum/blocksim/internal/storage"
)

// DefaultStabilityBound is the magnitude above which a sample counts as
// unstable.
const DefaultStabilityBound = 1e6

type Result struct {
	Config    *config.Config
	Setup     *Setup
	Report    *sim.Report
	Times     []float64
	Metrics   map[string]float64
	Stability float64
}

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	setup     *Setup
	recorder  *metrics.Recorder
	stability *metrics.Stability
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	return &Experiment{cfg: cfg, registry: registry}
}

// Setup validates the configuration, builds the model and attaches the
// default observers. Extra observers are attached after them.
func (e *Experiment) Setup(observers ...sim.Observer) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	setup, err := e.registry.Build(e.cfg.Model, e.cfg)
	if err != nil {
		return err
	}
	e.setup = setup
	e.recorder = metrics.NewRecorder()
	e.stability = metrics.NewStability(e.cfg.Param("stability_bound", DefaultStabilityBound))
	setup.Model.AddObserver(e.recorder)
	setup.Model.AddObserver(e.stability)
	for _, o := range observers {
		setup.Model.AddObserver(o)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.setup == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	report, err := e.setup.Model.Simulate(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := e.recorder.Snapshot()
	if err != nil {
		return nil, err
	}
	snapshot["stability"] = e.stability.Value()
	for _, v := range e.setup.Variables {
		values := v.Values()
		if last := values[len(values)-1]; !math.IsNaN(last) && !math.IsInf(last, 0) {
			snapshot["final_"+Label(v)] = last
		}
	}

	return &Result{
		Config:    e.cfg,
		Setup:     e.setup,
		Report:    report,
		Times:     e.setup.Model.Times(),
		Metrics:   snapshot,
		Stability: e.stability.Value(),
	}, nil
}

// Recorder exposes the metrics of the last run.
func (e *Experiment) Recorder() *metrics.Recorder {
	return e.recorder
}

// Run builds and simulates the model configured by cfg.
func Run(ctx context.Context, cfg *config.Config, observers ...sim.Observer) (*Result, error) {
	e := New(cfg, NewRegistry())
	if err := e.Setup(observers...); err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// Record converts the result into a storable run.
func (r *Result) Record() *storage.Record {
	series := make([]storage.Series, len(r.Setup.Variables))
	for i, v := range r.Setup.Variables {
		values := make([]float64, len(v.Values()))
		copy(values, v.Values())
		series[i] = storage.Series{Name: Label(v), Values: values}
	}
	m := r.Setup.Model
	return &storage.Record{
		Meta: storage.RunMetadata{
			Model:    r.Config.Model,
			Duration: m.End(),
			Steps:    m.Steps(),
			Dt:       m.Dt(),
			Params:   r.Config.Clone().Params,
			Failures: len(r.Report.Failures),
			Metrics:  r.Metrics,
		},
		Times:  r.Times,
		Series: series,
	}
}

// Label is the short name of v, or its full name when it has none.
func Label(v *dynamo.Variable) string {
	if v.ShortName != "" {
		return v.ShortName
	}
	return v.Name
}
