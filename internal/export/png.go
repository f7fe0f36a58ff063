// Package export writes simulation runs to files.
package export

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/blocksim/internal/storage"
)

const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
	dpi           = 150
)

// SavePNG draws every series against times on one chart. Non finite
// samples are skipped.
func SavePNG(path, title string, times []float64, series []storage.Series) error {
	p, err := linePlot(title, times, series)
	if err != nil {
		return err
	}
	return savePlotPNG(p, DefaultWidth, DefaultHeight, path)
}

func linePlot(title string, times []float64, series []storage.Series) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("plot data invalid: no series")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Values) != len(times) {
			return nil, fmt.Errorf("plot data invalid: %s has %d samples for %d times", s.Name, len(s.Values), len(times))
		}
		pts := make(plotter.XYs, 0, len(times))
		for j, t := range times {
			v := s.Values[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: t, Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return p, nil
}

func savePlotPNG(p *plot.Plot, w, h vg.Length, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
