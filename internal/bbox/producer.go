package bbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/mask"
	"github.com/banshee-data/scenario.report/internal/monitoring"
)

// ProducerConfig controls a batch box extraction over a dataset.
type ProducerConfig struct {
	Root         string
	Sensor       string // directory holding the instance masks
	Ext          string // mask file extension, "png" when empty
	OutputName   string // box file name under bbox/, Sensor when empty
	Classes      []int
	MinArea      int
	Workers      int
	Types        []dataset.ScenarioType
	SkipExisting bool

	// Progress receives a progress bar when non-nil.
	Progress io.Writer

	// OnJob is called once per variant after it finishes, from the worker
	// goroutine. It must be safe for concurrent use when Workers > 1.
	OnJob func(JobResult)
}

// JobResult is the outcome of one variant.
type JobResult struct {
	Ref         dataset.ScenarioRef
	Sensor      string
	OutputPath  string
	Frames      int
	Boxes       int
	FrameErrors int
	Skipped     bool
	Duration    time.Duration
	Err         error
}

// BatchSummary aggregates the outcomes of a batch run.
type BatchSummary struct {
	Variants    int
	Succeeded   int
	Failed      int
	Skipped     int
	Frames      int
	Boxes       int
	FrameErrors int
	Errors      []error
}

// Producer converts recorded instance masks into box files.
type Producer struct {
	cfg ProducerConfig
}

// NewProducer validates cfg and fills in defaults.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Root == "" {
		return nil, errors.New("dataset root is required")
	}
	if cfg.Sensor == "" {
		return nil, errors.New("mask sensor is required")
	}
	if cfg.Ext == "" {
		cfg.Ext = "png"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = cfg.Sensor
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MinArea < 0 {
		return nil, fmt.Errorf("min area must be non-negative, got %d", cfg.MinArea)
	}
	return &Producer{cfg: cfg}, nil
}

// Run processes every variant under the dataset root. A failing variant
// is logged and counted and the batch carries on; only cancellation of
// ctx stops the run early, in which case ctx.Err() is returned along with
// the partial summary.
func (p *Producer) Run(ctx context.Context) (BatchSummary, error) {
	refs, err := dataset.Walk(p.cfg.Root, p.cfg.Types...)
	if err != nil {
		return BatchSummary{}, err
	}
	return p.RunRefs(ctx, refs)
}

// RunRefs processes an explicit list of variants.
func (p *Producer) RunRefs(ctx context.Context, refs []dataset.ScenarioRef) (BatchSummary, error) {
	summary := BatchSummary{Variants: len(refs)}
	var mu sync.Mutex

	var bar *progressbar.ProgressBar
	if p.cfg.Progress != nil {
		bar = progressbar.NewOptions(len(refs),
			progressbar.OptionSetWriter(p.cfg.Progress),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan][bbox][reset] "+p.cfg.Sensor),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := p.ProcessVariant(gctx, ref)

			mu.Lock()
			summary.Frames += res.Frames
			summary.Boxes += res.Boxes
			summary.FrameErrors += res.FrameErrors
			switch {
			case res.Skipped:
				summary.Skipped++
			case res.Err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", ref, res.Err))
			default:
				summary.Succeeded++
			}
			if bar != nil {
				bar.Add(1)
			}
			mu.Unlock()

			if p.cfg.OnJob != nil {
				p.cfg.OnJob(res)
			}
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
					return res.Err
				}
				monitoring.Logf("bbox: %s failed: %v", ref, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err == nil {
		err = ctx.Err()
	}
	return summary, err
}

// ProcessVariant extracts boxes for every mask frame of one variant and
// writes the box file. Unreadable frames are logged and skipped.
func (p *Producer) ProcessVariant(ctx context.Context, ref dataset.ScenarioRef) JobResult {
	start := time.Now()
	res := JobResult{Ref: ref, Sensor: p.cfg.Sensor, OutputPath: ref.BoxPath(p.cfg.OutputName)}
	defer func() { res.Duration = time.Since(start) }()

	if p.cfg.SkipExisting {
		if _, err := os.Stat(res.OutputPath); err == nil {
			res.Skipped = true
			monitoring.Debugf("bbox: %s already has %s", ref, res.OutputPath)
			return res
		}
	}

	frames, err := dataset.ListFrames(ref.SensorDir(p.cfg.Sensor), p.cfg.Ext)
	if err != nil {
		res.Err = err
		return res
	}

	out := make(FrameBoxes, len(frames))
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		path := ref.FramePath(p.cfg.Sensor, frame, p.cfg.Ext)
		m, err := mask.Load(path)
		if err != nil {
			monitoring.Logf("bbox: skipping frame %d of %s: %v", frame, ref, err)
			res.FrameErrors++
			continue
		}
		boxes, err := mask.ExtractBoxes(m, p.cfg.Classes, p.cfg.MinArea)
		if err != nil {
			monitoring.Logf("bbox: skipping frame %d of %s: %v", frame, ref, err)
			res.FrameErrors++
			continue
		}
		out[frame] = boxes
		res.Frames++
		res.Boxes += len(boxes)
	}

	if len(frames) > 0 && res.Frames == 0 {
		res.Err = fmt.Errorf("none of %d frames could be processed", len(frames))
		return res
	}
	if err := Write(res.OutputPath, out); err != nil {
		res.Err = err
	}
	return res
}
