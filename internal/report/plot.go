// Package report renders evaluation curves and box statistics as static
// images and interactive HTML charts.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scenario.report/internal/risk"
)

var (
	precisionColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	recallColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	f1Color        = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

// PlotCurve saves precision, recall and F1 against threshold. The image
// format follows the file extension (png, svg, pdf).
func PlotCurve(points []risk.Point, title, path string) error {
	if len(points) == 0 {
		return ErrNoData
	}
	sorted := append([]risk.Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Threshold"
	p.Y.Label.Text = "Score"
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		c     color.Color
		value func(risk.Point) float64
	}{
		{"precision", precisionColor, func(pt risk.Point) float64 { return pt.Precision }},
		{"recall", recallColor, func(pt risk.Point) float64 { return pt.Recall }},
		{"F1", f1Color, func(pt risk.Point) float64 { return pt.F1 }},
	}
	for _, s := range series {
		xys := make(plotter.XYs, len(sorted))
		for i, pt := range sorted {
			xys[i] = plotter.XY{X: pt.Threshold, Y: s.value(pt)}
		}
		line, scatter, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		line.Color = s.c
		line.Width = vg.Points(1.5)
		scatter.Color = s.c
		scatter.Radius = vg.Points(2)
		p.Add(line, scatter)
		p.Legend.Add(s.name, line, scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return save(p, 8*vg.Inch, 5*vg.Inch, path)
}

// PlotPrecisionRecall saves the precision/recall trade-off with recall on
// the x axis.
func PlotPrecisionRecall(points []risk.Point, title, path string) error {
	if len(points) == 0 {
		return ErrNoData
	}
	sorted := append([]risk.Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Recall < sorted[j].Recall })

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1.05
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(sorted))
	for i, pt := range sorted {
		xys[i] = plotter.XY{X: pt.Recall, Y: pt.Precision}
	}
	line, scatter, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	line.Color = precisionColor
	scatter.Color = precisionColor
	p.Add(line, scatter)

	return save(p, 6*vg.Inch, 6*vg.Inch, path)
}

// PlotClassHistogram saves a bar chart of box counts per class id.
func PlotClassHistogram(counts map[int]int, title, path string) error {
	if len(counts) == 0 {
		return ErrNoData
	}
	classes := make([]int, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	values := make(plotter.Values, len(classes))
	labels := make([]string, len(classes))
	for i, c := range classes {
		values[i] = float64(counts[c])
		labels[i] = strconv.Itoa(c)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Class"
	p.Y.Label.Text = "Boxes"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.Color = precisionColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	width := vg.Length(len(classes))*0.6*vg.Inch + 2*vg.Inch
	return save(p, width, 4*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
