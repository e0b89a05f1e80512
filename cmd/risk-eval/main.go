// Command risk-eval scores a risk table against ground truth, either per
// scenario with a persistence window or per frame, optionally sweeping
// the threshold to produce precision/recall curves.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"

	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/db"
	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/risk"
	"github.com/banshee-data/scenario.report/internal/version"
)

const (
	modeScenario = "scenario"
	modeFrame    = "frame"
)

type options struct {
	RiskFile  string
	GTFile    string
	Mode      string
	Window    int
	Threshold float64
	Sweep     string
	PlotPath  string
	PRPath    string
	HTMLPath  string
	JSONPath  string
	DBPath    string
	Notes     string
	Verbose   bool
}

// output is what -json writes.
type output struct {
	Mode   string          `json:"mode"`
	Result *risk.Result    `json:"result,omitempty"`
	Points []risk.Point    `json:"points"`
	Best   *risk.Point     `json:"best_f1,omitempty"`
	Lead   *risk.LeadStats `json:"lead,omitempty"`
	RunID  string          `json:"run_id,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "", "JSON tool config (default "+config.DefaultConfigPath+" when present)")
		opts       options
		showVer    = flag.Bool("version", false, "Print version and exit")
	)
	flag.StringVar(&opts.RiskFile, "risk", "", "Risk table JSON (required)")
	flag.StringVar(&opts.GTFile, "gt", "", "Ground truth JSON (required)")
	flag.StringVar(&opts.Mode, "mode", modeScenario, "Evaluation mode: scenario or frame")
	flag.IntVar(&opts.Window, "window", 0, "Consecutive frames required to trigger (overrides window_frames)")
	flag.Float64Var(&opts.Threshold, "threshold", -1, "Go threshold in scenario mode, risk threshold in frame mode")
	flag.StringVar(&opts.Sweep, "sweep", "", "Sweep thresholds: min:max:step or a comma list")
	flag.StringVar(&opts.PlotPath, "plot", "", "Write the threshold curve to this PNG")
	flag.StringVar(&opts.PRPath, "pr", "", "Write the precision/recall curve to this PNG")
	flag.StringVar(&opts.HTMLPath, "html", "", "Write an interactive chart to this HTML file")
	flag.StringVar(&opts.JSONPath, "json", "", "Write results as JSON to this file (- for stdout)")
	flag.StringVar(&opts.DBPath, "db", "", "Store the run in this results database (overrides db_path)")
	flag.StringVar(&opts.Notes, "notes", "", "Free-text note stored with the run")
	flag.BoolVar(&opts.Verbose, "v", false, "Print per-scenario decisions")
	flag.Parse()

	if *showVer {
		fmt.Println(version.String("risk-eval"))
		return
	}
	monitoring.SetVerbose(opts.Verbose)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	opts.applyConfig(cfg)

	if err := run(opts, os.Stdout); err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
}

// applyConfig fills unset options from the tool config.
func (o *options) applyConfig(cfg *config.ToolConfig) {
	if o.Window <= 0 {
		o.Window = cfg.GetWindowFrames()
	}
	if o.Threshold < 0 {
		if o.Mode == modeFrame {
			o.Threshold = cfg.GetRiskThreshold()
		} else {
			o.Threshold = cfg.GetGoThreshold()
		}
	}
	if o.DBPath == "" {
		o.DBPath = cfg.GetDBPath()
	}
}

func (o options) validate() error {
	if o.RiskFile == "" || o.GTFile == "" {
		return fmt.Errorf("-risk and -gt are required")
	}
	if o.Mode != modeScenario && o.Mode != modeFrame {
		return fmt.Errorf("unknown mode %q (want %s or %s)", o.Mode, modeScenario, modeFrame)
	}
	return nil
}

func run(o options, stdout io.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}
	table, err := risk.LoadTable(o.RiskFile)
	if err != nil {
		return err
	}
	gt, err := risk.LoadGroundTruth(o.GTFile)
	if err != nil {
		return err
	}

	out := output{Mode: o.Mode}
	if o.Sweep != "" {
		thresholds, err := risk.ParseThresholds(o.Sweep)
		if err != nil {
			return err
		}
		if o.Mode == modeScenario {
			out.Points, err = risk.Sweep(table, gt, thresholds, o.Window)
		} else {
			out.Points, err = risk.SweepFrames(table, gt, thresholds)
		}
		if err != nil {
			return err
		}
		printSweep(stdout, out.Points)
		if best, ok := risk.BestF1(out.Points); ok {
			out.Best = &best
			colorstring.Fprintf(stdout, "[bold]Best F1[reset] %.3f at threshold %g\n", best.F1, best.Threshold)
		}
	} else if o.Mode == modeScenario {
		res, err := risk.Evaluate(table, gt, risk.Config{Window: o.Window, GoThreshold: o.Threshold})
		if err != nil {
			return err
		}
		if o.Verbose {
			printScenarios(stdout, res)
		}
		lead := risk.Lead(res)
		out.Result, out.Lead = &res, &lead
		out.Points = []risk.Point{risk.NewPoint(o.Threshold, res.Confusion)}
		printConfusion(stdout, res.Confusion)
		if lead.N > 0 {
			fmt.Fprintf(stdout, "Lead frames over %d true positives: mean %.1f, std %.1f, min %.0f, max %.0f\n",
				lead.N, lead.Mean, lead.StdDev, lead.Min, lead.Max)
		}
		if len(res.Unmatched) > 0 {
			colorstring.Fprintf(stdout, "[yellow]%d ground truth scenarios missing from the risk table\n", len(res.Unmatched))
		}
	} else {
		c, err := risk.EvaluateFrames(table, gt, o.Threshold)
		if err != nil {
			return err
		}
		out.Points = []risk.Point{risk.NewPoint(o.Threshold, c)}
		printConfusion(stdout, c)
	}

	return writeOutputs(o, table, &out, stdout)
}

func writeOutputs(o options, table risk.Table, out *output, stdout io.Writer) error {
	title := fmt.Sprintf("%s evaluation", o.Mode)
	if o.PlotPath != "" {
		if err := report.PlotCurve(out.Points, title, o.PlotPath); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		log.Printf("wrote %s", o.PlotPath)
	}
	if o.PRPath != "" {
		if err := report.PlotPrecisionRecall(out.Points, title, o.PRPath); err != nil {
			return fmt.Errorf("precision/recall plot: %w", err)
		}
		log.Printf("wrote %s", o.PRPath)
	}
	if o.HTMLPath != "" {
		if err := writeHTML(o, title, out.Points); err != nil {
			return err
		}
		log.Printf("wrote %s", o.HTMLPath)
	}
	if o.DBPath != "" {
		id, err := storeRun(o, len(table), out.Points)
		if err != nil {
			return err
		}
		out.RunID = id
		log.Printf("stored run %s in %s", id, o.DBPath)
	}
	if o.JSONPath != "" {
		if err := writeJSON(o.JSONPath, out, stdout); err != nil {
			return err
		}
	}
	return nil
}

func writeHTML(o options, title string, points []risk.Point) error {
	if dir := filepath.Dir(o.HTMLPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(o.HTMLPath)
	if err != nil {
		return err
	}
	meta := report.ChartMeta{Title: title, Subtitle: fmt.Sprintf("%s vs %s", filepath.Base(o.RiskFile), filepath.Base(o.GTFile))}
	if err := report.RenderCurveHTML(f, meta, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func storeRun(o options, scenarios int, points []risk.Point) (string, error) {
	database, err := db.NewDB(o.DBPath)
	if err != nil {
		return "", fmt.Errorf("failed to open results database: %w", err)
	}
	defer database.Close()

	run := &db.EvalRun{
		Mode:      o.Mode,
		RiskFile:  o.RiskFile,
		GTFile:    o.GTFile,
		Scenarios: scenarios,
		Notes:     o.Notes,
	}
	if o.Mode == modeScenario {
		run.WindowFrames = o.Window
		if o.Sweep == "" {
			thr := o.Threshold
			run.GoThreshold = &thr
		}
	}
	if err := database.InsertRun(run); err != nil {
		return "", fmt.Errorf("failed to store run: %w", err)
	}
	if err := database.InsertPoints(run.RunID, db.PointsFromCurve(run.RunID, points)); err != nil {
		return "", fmt.Errorf("failed to store points: %w", err)
	}
	return run.RunID, nil
}

func writeJSON(path string, v interface{}, stdout io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printConfusion(w io.Writer, c risk.Confusion) {
	colorstring.Fprintf(w, "\nTrue positives: [green]%d[reset], ", c.TP)
	colorstring.Fprintf(w, "False negatives: [red]%d[reset], ", c.FN)
	colorstring.Fprintf(w, "True negatives: [green]%d[reset], ", c.TN)
	colorstring.Fprintf(w, "False positives: [red]%d[reset]\n", c.FP)
	fmt.Fprintf(w, "Precision %.3f  Recall %.3f  F1 %.3f  Accuracy %.3f\n",
		c.Precision(), c.Recall(), c.F1(), c.Accuracy())
}

func printSweep(w io.Writer, points []risk.Point) {
	fmt.Fprintf(w, "%-10s %5s %5s %5s %5s %9s %7s %6s\n", "threshold", "TP", "FP", "FN", "TN", "precision", "recall", "F1")
	for _, p := range points {
		fmt.Fprintf(w, "%-10g %5d %5d %5d %5d %9.3f %7.3f %6.3f\n",
			p.Threshold, p.TP, p.FP, p.FN, p.TN, p.Precision, p.Recall, p.F1)
	}
}

func printScenarios(w io.Writer, res risk.Result) {
	for _, s := range res.Scenarios {
		color := "green"
		if s.Outcome == risk.FalsePositive || s.Outcome == risk.FalseNegative {
			color = "red"
		}
		line := fmt.Sprintf("[%s]%-2s[reset] %s", color, s.Outcome, s.Key)
		if s.Decision.Triggered {
			line += fmt.Sprintf(" object %s frames %d-%d", s.Decision.ObjectID, s.Decision.StartFrame, s.Decision.EndFrame)
		}
		if s.GroundTruth != "" {
			line += " gt " + s.GroundTruth
		}
		colorstring.Fprintln(w, line)
	}
}
