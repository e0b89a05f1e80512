//go:build opencv
// +build opencv

package video

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/monitoring"
)

// Encode writes frames, in order, to an MP4 (or any container OpenCV
// infers from out) at opts.FPS. Unreadable frames are logged and skipped.
func Encode(ctx context.Context, frames []FrameFile, out string, opts Options) (written int, err error) {
	opts, err = opts.withDefaults()
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, ErrNoFrames
	}

	first, err := prepareFrame(frames[0], opts)
	if err != nil {
		return 0, err
	}
	width, height := opts.Width, opts.Height
	if width == 0 {
		width, height = first.Bounds().Dx(), first.Bounds().Dy()
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	writer, err := gocv.VideoWriterFile(out, opts.Codec, float64(opts.FPS), width, height, true)
	if err != nil {
		return 0, fmt.Errorf("failed to open video writer for %s: %w", out, err)
	}
	defer writer.Close()

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		img := first
		if i > 0 {
			img, err = prepareFrame(f, opts)
			if err != nil {
				monitoring.Logf("video: skipping frame %d: %v", f.Number, err)
				continue
			}
		}
		if err := writeFrame(writer, img, width, height); err != nil {
			return written, fmt.Errorf("frame %d: %w", f.Number, err)
		}
		written++
	}
	return written, nil
}

func writeFrame(writer *gocv.VideoWriter, img image.Image, width, height int) error {
	// ImageToMatRGB lays channels out in OpenCV's BGR order.
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer bgr.Close()

	if bgr.Cols() != width || bgr.Rows() != height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(bgr, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		return writer.Write(resized)
	}
	return writer.Write(bgr)
}

// Extract dumps every frame of a video into dir as zero-padded PNGs
// numbered from 0.
func Extract(ctx context.Context, path, dir string) (int, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer capture.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create frame directory: %w", err)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	n := 0
	for capture.Read(&mat) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if mat.Empty() {
			continue
		}
		name := filepath.Join(dir, dataset.FrameFileName(n, "png"))
		if ok := gocv.IMWrite(name, mat); !ok {
			return n, fmt.Errorf("failed to write %s", name)
		}
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoFrames, path)
	}
	return n, nil
}
