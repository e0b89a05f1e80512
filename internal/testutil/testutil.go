// Package testutil provides shared test helpers and on-disk fixtures for
// recorded scenarios.
package testutil

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/mask"
	"github.com/banshee-data/scenario.report/internal/sim"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	AssertNoError(t, err)
	defer f.Close()
	AssertNoError(t, png.Encode(f, img))
}

// WriteJSON marshals v to path.
func WriteJSON(t testing.TB, path string, v interface{}) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	AssertNoError(t, err)
	AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	AssertNoError(t, os.WriteFile(path, data, 0o644))
}

// Recording describes a synthetic variant to lay out on disk.
type Recording struct {
	Frames int
	Width  int
	Height int
	// LidarEvery writes a LiDAR frame on every n-th frame; 0 disables LiDAR.
	LidarEvery int
}

// Sensor directory names used by RecordVariant.
const (
	RGBSensor   = "rgb"
	MaskSensor  = "instance_segmentation"
	LidarSensor = "lidar"
)

// RecordVariant writes a variant under root with an RGB camera, an
// instance mask holding one 2×2 pedestrian per frame (actor 5, moving one
// pixel right per frame) and optionally LiDAR.
func RecordVariant(t testing.TB, root string, typ dataset.ScenarioType, id, variant string, rec Recording) dataset.ScenarioRef {
	t.Helper()
	if rec.Width == 0 {
		rec.Width, rec.Height = 8, 6
	}
	ref, err := dataset.NewScenarioRef(root, typ, id, variant)
	AssertNoError(t, err)

	for frame := 0; frame < rec.Frames; frame++ {
		shade := uint8(10 * (frame + 1))
		WritePNG(t, ref.FramePath(RGBSensor, frame, "png"), SolidImage(rec.Width, rec.Height, color.NRGBA{R: shade, G: shade, B: shade, A: 255}))

		m := mask.NewMask(rec.Width, rec.Height)
		for y := 1; y < 3; y++ {
			for x := frame % (rec.Width - 1); x < frame%(rec.Width-1)+2; x++ {
				m.Set(x, y, 4, 5)
			}
		}
		WritePNG(t, ref.FramePath(MaskSensor, frame, "png"), m.Image())

		if rec.LidarEvery > 0 && frame%rec.LidarEvery == 0 {
			path := ref.FramePath(LidarSensor, frame, "ply")
			AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			f, err := os.Create(path)
			AssertNoError(t, err)
			AssertNoError(t, sim.WritePLY(f, []sim.LidarPoint{
				{X: float32(frame), Y: 1, Z: 0.5, Intensity: 0.25},
				{X: -1, Y: float32(frame), Z: 0, Intensity: 1},
			}))
			AssertNoError(t, f.Close())
		}
	}
	return ref
}
