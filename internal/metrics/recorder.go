// Package metrics observes simulation runs.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/sim"
)

const namespace = "blocksim"

// Recorder counts the work done by the simulation loop in a private
// prometheus registry. It implements sim.Observer.
type Recorder struct {
	reg        *prometheus.Registry
	steps      prometheus.Counter
	explicit   prometheus.Counter
	implicit   prometheus.Counter
	iterations prometheus.Counter
	failures   prometheus.Counter
	residual   prometheus.Gauge
	groupSize  prometheus.Histogram

	explicitPerStep int
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "steps_total",
			Help: "Time steps executed.",
		}),
		explicit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "explicit_evaluations_total",
			Help: "Explicit equation evaluations.",
		}),
		implicit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "implicit_solves_total",
			Help: "Implicit group resolutions.",
		}),
		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "newton_iterations_total",
			Help: "Newton iterations spent on implicit groups.",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "convergence_failures_total",
			Help: "Implicit resolutions that missed the tolerance.",
		}),
		residual: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_residual",
			Help: "Largest residual norm accepted by an implicit resolution.",
		}),
		groupSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "implicit_group_size",
			Help:    "Number of equations per implicit resolution.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 6),
		}),
	}
}

// Registry exposes the collectors, for example to an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Gather() ([]*dto.MetricFamily, error) { return r.reg.Gather() }

func (r *Recorder) OnStart(plan *causal.Plan, steps int) {
	r.explicitPerStep = len(plan.Steps) - plan.NumImplicit()
}

func (r *Recorder) OnStep(step int, t float64) {
	r.steps.Inc()
	r.explicit.Add(float64(r.explicitPerStep))
}

func (r *Recorder) OnImplicit(s sim.ImplicitSolve) {
	r.implicit.Inc()
	r.iterations.Add(float64(s.Iterations))
	r.groupSize.Observe(float64(s.Size))
	if !s.Converged {
		r.failures.Inc()
	}
	// Gauges have no max operation; the observer is single-threaded.
	var m dto.Metric
	if err := r.residual.Write(&m); err == nil && s.Residual > m.GetGauge().GetValue() {
		r.residual.Set(s.Residual)
	}
}

func (r *Recorder) OnFinish(rep *sim.Report) {}

// Snapshot flattens the registry into name/value pairs. Histograms
// contribute their sample count and sum.
func (r *Recorder) Snapshot() (map[string]float64, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), namespace+"_")
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[name] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[name] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[name+"_count"] = float64(m.GetHistogram().GetSampleCount())
				out[name+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}

// SortedKeys returns the keys of a snapshot in order.
func SortedKeys(snapshot map[string]float64) []string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
