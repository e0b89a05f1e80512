// Command bbox converts recorded instance segmentation masks into per
// variant bounding box files. It can also compare two box files or plot
// the class histogram of one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/banshee-data/scenario.report/internal/bbox"
	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/db"
	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "JSON tool config (default "+config.DefaultConfigPath+" when present)")
	root         = flag.String("root", "", "Dataset root (overrides dataset_root)")
	sensor       = flag.String("sensor", "", "Sensor directory holding instance masks (overrides box_sensor)")
	classes      = flag.String("classes", "", "Comma-separated class ids to box (overrides classes)")
	minArea      = flag.Int("min-area", -1, "Minimum box area in pixels (overrides min_area)")
	workers      = flag.Int("workers", 0, "Variants processed in parallel (overrides workers)")
	types        = flag.String("type", "", "Comma-separated scenario types to process (default all)")
	outName      = flag.String("out", "", "Box file name under bbox/ (default: sensor name)")
	skipExisting = flag.Bool("skip-existing", false, "Skip variants whose box file already exists")
	dbPath       = flag.String("db", "", "Record jobs in this results database (overrides db_path)")
	progress     = flag.Bool("progress", true, "Show a progress bar")
	verbose      = flag.Bool("v", false, "Verbose logging")

	compare = flag.String("compare", "", "Compare two box files: a.json,b.json")
	minIoU  = flag.Float64("iou", 0.5, "Minimum IoU for -compare matches")
	hist    = flag.String("hist", "", "Plot the class histogram of a box file to this PNG (requires -in)")
	in      = flag.String("in", "", "Box file read by -hist")

	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	monitoring.SetVerbose(*verbose)

	if *showVersion {
		fmt.Println(version.String("bbox"))
		return
	}

	switch {
	case *compare != "":
		if err := runCompare(*compare, *minIoU); err != nil {
			log.Fatalf("compare failed: %v", err)
		}
		return
	case *hist != "":
		if err := runHistogram(*in, *hist); err != nil {
			log.Fatalf("histogram failed: %v", err)
		}
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	pcfg, err := producerConfig(cfg)
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	var database *db.DB
	if path := firstNonEmpty(*dbPath, cfg.GetDBPath()); path != "" {
		database, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("failed to open results database: %v", err)
		}
		defer database.Close()
		pcfg.OnJob = recordJob(database)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer, err := bbox.NewProducer(pcfg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("extracting boxes under %s from %s (classes %v, min area %d, %d workers)",
		pcfg.Root, pcfg.Sensor, pcfg.Classes, pcfg.MinArea, pcfg.Workers)

	summary, err := producer.Run(ctx)
	printSummary(summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("interrupted")
			os.Exit(130)
		}
		log.Fatalf("batch failed: %v", err)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// producerConfig merges the tool config with explicitly set flags.
func producerConfig(cfg *config.ToolConfig) (bbox.ProducerConfig, error) {
	pcfg := bbox.ProducerConfig{
		Root:         firstNonEmpty(*root, cfg.GetDatasetRoot()),
		Sensor:       firstNonEmpty(*sensor, cfg.GetBoxSensor()),
		OutputName:   *outName,
		Classes:      cfg.GetClasses(),
		MinArea:      cfg.GetMinArea(),
		Workers:      cfg.GetWorkers(),
		SkipExisting: *skipExisting,
	}
	if *classes != "" {
		ids, err := config.ParseIntList(*classes)
		if err != nil {
			return pcfg, fmt.Errorf("-classes: %w", err)
		}
		pcfg.Classes = ids
	}
	if *minArea >= 0 {
		pcfg.MinArea = *minArea
	}
	if *workers > 0 {
		pcfg.Workers = *workers
	}
	if *types != "" {
		for _, s := range strings.Split(*types, ",") {
			t, err := dataset.ParseScenarioType(strings.TrimSpace(s))
			if err != nil {
				return pcfg, err
			}
			pcfg.Types = append(pcfg.Types, t)
		}
	}
	if *progress {
		pcfg.Progress = os.Stderr
	}
	return pcfg, nil
}

func recordJob(database *db.DB) func(bbox.JobResult) {
	return func(res bbox.JobResult) {
		job := &db.BoxJob{
			Scenario:    res.Ref.Key(),
			Sensor:      res.Sensor,
			OutputPath:  res.OutputPath,
			Frames:      res.Frames,
			Boxes:       res.Boxes,
			FrameErrors: res.FrameErrors,
			Skipped:     res.Skipped,
			DurationMS:  res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			job.Error = res.Err.Error()
		}
		if err := database.RecordBoxJob(job); err != nil {
			log.Printf("failed to record job for %s: %v", res.Ref, err)
		}
	}
}

func printSummary(s bbox.BatchSummary) {
	log.Printf("variants: %d  succeeded: %d  skipped: %d  failed: %d",
		s.Variants, s.Succeeded, s.Skipped, s.Failed)
	log.Printf("frames: %d  boxes: %d  frame errors: %d", s.Frames, s.Boxes, s.FrameErrors)
	for _, err := range s.Errors {
		log.Printf("  %v", err)
	}
}

func runCompare(spec string, minIoU float64) error {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return fmt.Errorf("expected two files, got %q", spec)
	}
	a, err := bbox.Read(strings.TrimSpace(parts[0]))
	if err != nil {
		return err
	}
	b, err := bbox.Read(strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bbox.Compare(a, b, minIoU))
}

func runHistogram(boxFile, out string) error {
	if boxFile == "" {
		return errors.New("-hist requires -in")
	}
	fb, err := bbox.Read(boxFile)
	if err != nil {
		return err
	}
	counts := fb.ClassCounts()
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		log.Printf("class %3d: %d boxes", id, counts[id])
	}
	return report.PlotClassHistogram(counts, fmt.Sprintf("%s (%d frames)", boxFile, len(fb)), out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
