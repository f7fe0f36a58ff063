// Package optim sweeps model parameters over a grid.
package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/experiment"
)

// Point is one grid combination and the metrics of its run.
type Point struct {
	Params  map[string]float64
	Metrics map[string]float64
	Err     error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid: parameter %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.NumCPU()}, nil
}

// SetWorkers bounds the number of models simulated at once.
func (g *GridSearch) SetWorkers(n int) {
	g.workers = max(n, 1)
}

// Points enumerates every combination, last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.paramNames[depth]] = val
		g.enumerate(depth+1, current, out)
	}
}

// Run simulates base once per grid point. Every run builds its own model,
// so runs share no buffers.
func (g *GridSearch) Run(ctx context.Context, base *config.Config) []Point {
	combos := g.Points()
	points := make([]Point, len(combos))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(g.workers, len(combos)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				points[idx] = g.runOne(ctx, base, combos[idx])
			}
		}()
	}

	for i := range combos {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(combos); j++ {
				points[j] = Point{Params: combos[j], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return points
		}
	}
	close(jobs)
	wg.Wait()
	return points
}

func (g *GridSearch) runOne(ctx context.Context, base *config.Config, params map[string]float64) Point {
	cfg := base.Clone()
	for k, v := range params {
		cfg.SetParam(k, v)
	}
	result, err := experiment.Run(ctx, cfg)
	if err != nil {
		return Point{Params: params, Err: err}
	}
	return Point{Params: params, Metrics: result.Metrics}
}

// Best returns the successful point with the smallest value of metric.
func Best(points []Point, metric string) (Point, bool) {
	best, found := Point{}, false
	bestVal := math.Inf(1)
	for _, p := range points {
		if p.Err != nil {
			continue
		}
		v, ok := p.Metrics[metric]
		if !ok || math.IsNaN(v) {
			continue
		}
		if v < bestVal {
			best, bestVal, found = p, v, true
		}
	}
	return best, found
}

// ParamNames returns the keys of a point in order.
func ParamNames(p map[string]float64) []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
