// Command frames2video encodes a directory of numbered frames into a
// video, optionally drawing bounding boxes, or extracts the frames of a
// video back into numbered PNGs.
//
// Video support requires building with -tags=opencv.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/scenario.report/internal/bbox"
	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/security"
	"github.com/banshee-data/scenario.report/internal/video"
)

type options struct {
	Mode   string
	Path   string
	Out    string
	Res    string
	FPS    int
	Codec  string
	Boxes  string
	Sensor string
	Ext    string
}

func main() {
	var o options
	configPath := flag.String("config", "", "JSON tool config (default "+config.DefaultConfigPath+" when present)")
	flag.StringVar(&o.Mode, "mode", "encode", "encode (frames to video) or extract (video to frames)")
	flag.StringVar(&o.Path, "path", "", "Frame directory or variant directory (encode), video file (extract)")
	flag.StringVar(&o.Out, "out", "", "Output video (encode) or frame directory (extract)")
	flag.StringVar(&o.Res, "res", "", "Output resolution WxH (default: source size)")
	flag.IntVar(&o.FPS, "fps", 0, "Frames per second (overrides fps)")
	flag.StringVar(&o.Codec, "codec", "", "Four character codec code (overrides video_codec)")
	flag.StringVar(&o.Boxes, "boxes", "", "Box JSON drawn over the frames")
	flag.StringVar(&o.Sensor, "sensor", "", "Sensor subdirectory of -path to encode")
	flag.StringVar(&o.Ext, "ext", "png", "Frame file extension")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if o.FPS == 0 {
		o.FPS = cfg.GetFPS()
	}
	if o.Codec == "" {
		o.Codec = cfg.GetVideoCodec()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, out, err := run(ctx, o)
	if errors.Is(err, video.ErrOpenCVDisabled) {
		log.Fatalf("%v", err)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", o.Mode, err)
	}
	log.Printf("%s: %d frames -> %s", o.Mode, n, out)
}

func run(ctx context.Context, o options) (int, string, error) {
	if o.Path == "" {
		return 0, "", errors.New("-path is required")
	}
	switch o.Mode {
	case "encode":
		return encode(ctx, o)
	case "extract":
		out := o.Out
		if out == "" {
			out = trimExt(o.Path)
		}
		n, err := video.Extract(ctx, o.Path, out)
		return n, out, err
	default:
		return 0, "", fmt.Errorf("unknown mode %q (want encode or extract)", o.Mode)
	}
}

func encode(ctx context.Context, o options) (int, string, error) {
	dir := o.Path
	if o.Sensor != "" {
		dir = filepath.Join(o.Path, o.Sensor)
		if err := security.ValidatePathWithinDirectory(dir, o.Path); err != nil {
			return 0, "", err
		}
	}
	frames, err := video.ListFrameFiles(dir, o.Ext)
	if err != nil {
		return 0, "", err
	}

	opts := video.Options{FPS: o.FPS, Codec: o.Codec}
	if o.Res != "" {
		if opts.Width, opts.Height, err = video.ParseResolution(o.Res); err != nil {
			return 0, "", err
		}
	}
	boxFile := o.Boxes
	if boxFile == "" && o.Sensor != "" {
		// pick up the variant's own box file when one was produced
		candidate := filepath.Join(o.Path, dataset.BoxDirName, o.Sensor+".json")
		if _, err := os.Stat(candidate); err == nil {
			boxFile = candidate
		}
	}
	if boxFile != "" {
		fb, err := bbox.Read(boxFile)
		if err != nil {
			return 0, "", err
		}
		opts.Boxes = fb
		log.Printf("drawing %d boxes from %s", fb.Count(), boxFile)
	}

	out := o.Out
	if out == "" {
		out = filepath.Clean(dir) + ".mp4"
	}
	n, err := video.Encode(ctx, frames, out, opts)
	return n, out, err
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
