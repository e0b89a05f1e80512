package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scenario.report/internal/risk"
)

// ChartMeta labels an HTML chart.
type ChartMeta struct {
	Title    string
	Subtitle string
	// AssetsHost overrides where the echarts javascript is loaded from.
	AssetsHost string
}

// RenderCurveHTML writes an interactive precision/recall/F1 chart page.
func RenderCurveHTML(w io.Writer, meta ChartMeta, points []risk.Point) error {
	if len(points) == 0 {
		return ErrNoData
	}
	sorted := append([]risk.Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })

	x := make([]string, len(sorted))
	precision := make([]opts.LineData, len(sorted))
	recall := make([]opts.LineData, len(sorted))
	f1 := make([]opts.LineData, len(sorted))
	for i, p := range sorted {
		x[i] = strconv.FormatFloat(p.Threshold, 'f', -1, 64)
		precision[i] = opts.LineData{Value: p.Precision}
		recall[i] = opts.LineData{Value: p.Recall}
		f1[i] = opts.LineData{Value: p.F1}
	}

	title := meta.Title
	if title == "" {
		title = "Risk evaluation"
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "560px", AssetsHost: meta.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: meta.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "threshold", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "score"}),
	)
	line.SetXAxis(x).
		AddSeries("precision", precision).
		AddSeries("recall", recall).
		AddSeries("F1", f1).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	page := components.NewPage()
	if meta.AssetsHost != "" {
		page.SetAssetsHost(meta.AssetsHost)
	}
	page.AddCharts(line, confusionBar(sorted))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// confusionBar stacks the confusion counts per threshold.
func confusionBar(points []risk.Point) *charts.Bar {
	x := make([]string, len(points))
	series := map[string][]opts.BarData{}
	names := []string{"TP", "FP", "FN", "TN"}
	for i, p := range points {
		x[i] = strconv.FormatFloat(p.Threshold, 'f', -1, 64)
		for _, n := range names {
			var v int
			switch n {
			case "TP":
				v = p.TP
			case "FP":
				v = p.FP
			case "FN":
				v = p.FN
			case "TN":
				v = p.TN
			}
			series[n] = append(series[n], opts.BarData{Value: v})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Outcomes per threshold"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	bar.SetXAxis(x)
	for _, n := range names {
		bar.AddSeries(n, series[n], charts.WithBarChartOpts(opts.BarChart{Stack: "outcomes"}))
	}
	return bar
}
