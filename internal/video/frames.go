// Package video turns recorded frame directories into video files and back.
// Encoding and extraction need OpenCV and are only available when built
// with -tags=opencv; the frame helpers are pure Go.
package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/mask"
)

var (
	// ErrNoFrames is returned when a frame directory holds no frames.
	ErrNoFrames = errors.New("no frames found")
	// ErrOpenCVDisabled is returned by Encode and Extract in builds
	// without OpenCV support.
	ErrOpenCVDisabled = errors.New("video support not enabled: rebuild with -tags=opencv")
)

// Defaults used when Options leaves a field zero.
const (
	DefaultFPS   = 20
	DefaultCodec = "mp4v"
)

// Options controls encoding.
type Options struct {
	FPS   int
	Codec string // four character code
	// Width and Height resize every frame when both are set.
	Width, Height int
	// Boxes, when set, are drawn over the matching frames.
	Boxes map[int][]mask.Box
}

func (o Options) withDefaults() (Options, error) {
	if o.FPS == 0 {
		o.FPS = DefaultFPS
	}
	if o.Codec == "" {
		o.Codec = DefaultCodec
	}
	if o.FPS < 1 {
		return o, fmt.Errorf("fps must be positive, got %d", o.FPS)
	}
	if len(o.Codec) != 4 {
		return o, fmt.Errorf("codec must be a four character code, got %q", o.Codec)
	}
	if (o.Width == 0) != (o.Height == 0) || o.Width < 0 || o.Height < 0 {
		return o, fmt.Errorf("invalid resolution %dx%d", o.Width, o.Height)
	}
	return o, nil
}

// FrameFile is one frame on disk.
type FrameFile struct {
	Number int
	Path   string
}

// ListFrameFiles returns the frames in dir with the given extension,
// ordered by frame number.
func ListFrameFiles(dir, ext string) ([]FrameFile, error) {
	frames, err := dataset.ListFrames(dir, ext)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	// ListFrames matches the extension case-insensitively, so recover the
	// real file names.
	names := make(map[int]string, len(frames))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if n, err := dataset.ParseFrameNumber(e.Name()); err == nil &&
			strings.EqualFold(filepath.Ext(e.Name()), "."+strings.TrimPrefix(ext, ".")) {
			names[n] = e.Name()
		}
	}
	out := make([]FrameFile, len(frames))
	for i, n := range frames {
		out[i] = FrameFile{Number: n, Path: filepath.Join(dir, names[n])}
	}
	return out, nil
}

// ParseResolution parses "WIDTHxHEIGHT". An empty string means no resize.
func ParseResolution(s string) (width, height int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", s)
	}
	width, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	height, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	return width, height, nil
}

// LoadFrame decodes a PNG or JPEG frame.
func LoadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// classColors gives common classes a stable outline color.
var classColors = map[int]color.RGBA{
	4:  {R: 220, G: 20, B: 60, A: 255}, // pedestrian
	10: {R: 0, G: 0, B: 142, A: 255},   // vehicle
	20: {R: 255, G: 215, B: 0, A: 255}, // remapped 9
}

var defaultBoxColor = color.RGBA{G: 255, A: 255}

// DrawBoxes returns a copy of img with a two pixel outline around each box.
func DrawBoxes(img image.Image, boxes []mask.Box) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	for _, box := range boxes {
		c, ok := classColors[box.Class]
		if !ok {
			c = defaultBoxColor
		}
		outline(out, box.Rect.Add(b.Min), 2, c)
	}
	return out
}

func outline(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}

// prepareFrame loads a frame and overlays its boxes.
func prepareFrame(f FrameFile, opts Options) (image.Image, error) {
	img, err := LoadFrame(f.Path)
	if err != nil {
		return nil, err
	}
	if boxes := opts.Boxes[f.Number]; len(boxes) > 0 {
		return DrawBoxes(img, boxes), nil
	}
	return img, nil
}
