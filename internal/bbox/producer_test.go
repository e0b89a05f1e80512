package bbox

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/mask"
)

const testSensor = "instance_segmentation"

func writeMask(t *testing.T, path string, m *mask.Mask) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m.Image()))
}

// seedVariant writes n mask frames holding one 3×3 pedestrian (class 4).
func seedVariant(t *testing.T, root string, typ dataset.ScenarioType, id, variant string, n int) dataset.ScenarioRef {
	t.Helper()
	ref, err := dataset.NewScenarioRef(root, typ, id, variant)
	require.NoError(t, err)
	for frame := 0; frame < n; frame++ {
		m := mask.NewMask(8, 8)
		for y := 2; y < 5; y++ {
			for x := frame; x < frame+3; x++ {
				m.Set(x, y, 4, 12)
			}
		}
		writeMask(t, ref.FramePath(testSensor, frame, "png"), m)
	}
	return ref
}

func TestProducer_WritesBoxFiles(t *testing.T) {
	root := t.TempDir()
	a := seedVariant(t, root, dataset.Collision, "10_t1-1", "Town10HD_ClearNoon_low_1", 3)
	b := seedVariant(t, root, dataset.Obstacle, "5_s-2", "Town05_WetNoon_mid_2", 2)

	var mu sync.Mutex
	var jobs []JobResult
	p, err := NewProducer(ProducerConfig{
		Root:    root,
		Sensor:  testSensor,
		Classes: []int{4},
		MinArea: 4,
		Workers: 2,
		OnJob: func(r JobResult) {
			mu.Lock()
			jobs = append(jobs, r)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Variants)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, summary.Frames)
	assert.Equal(t, 5, summary.Boxes)
	assert.Len(t, jobs, 2)

	got, err := Read(a.BoxPath(testSensor))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got.Frames())
	assert.Equal(t, []mask.Box{{ActorID: 12, Class: 4, Rect: image.Rect(1, 2, 4, 5)}}, got[1])

	got, err = Read(b.BoxPath(testSensor))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count())
}

func TestProducer_MinAreaFiltersSmallObjects(t *testing.T) {
	root := t.TempDir()
	ref := seedVariant(t, root, dataset.Interactive, "1_i-1", "Town01_ClearNoon_low_1", 1)

	p, err := NewProducer(ProducerConfig{Root: root, Sensor: testSensor, Classes: []int{4}, MinArea: 10})
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	got, err := Read(ref.BoxPath(testSensor))
	require.NoError(t, err)
	assert.Equal(t, FrameBoxes{0: {}}, got)
}

func TestProducer_SkipExisting(t *testing.T) {
	root := t.TempDir()
	ref := seedVariant(t, root, dataset.Collision, "1_c-1", "Town01_ClearNoon_low_1", 1)
	require.NoError(t, Write(ref.BoxPath(testSensor), FrameBoxes{99: {}}))

	p, err := NewProducer(ProducerConfig{Root: root, Sensor: testSensor, Classes: []int{4}, SkipExisting: true})
	require.NoError(t, err)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	got, err := Read(ref.BoxPath(testSensor))
	require.NoError(t, err)
	assert.Equal(t, []int{99}, got.Frames(), "existing file must be left untouched")
}

func TestProducer_FailedVariantDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	good := seedVariant(t, root, dataset.Collision, "1_c-1", "Town01_ClearNoon_low_1", 1)

	// A variant with only a corrupt mask frame.
	bad, err := dataset.NewScenarioRef(root, dataset.Collision, "2_c-1", "Town02_ClearNoon_low_1")
	require.NoError(t, err)
	badFrame := bad.FramePath(testSensor, 0, "png")
	require.NoError(t, os.MkdirAll(filepath.Dir(badFrame), 0o755))
	require.NoError(t, os.WriteFile(badFrame, []byte("not a png"), 0o644))

	// A variant without the sensor directory at all.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "collision", "3_c-1", dataset.VariantDirName, "Town03_ClearNoon_low_1"), 0o755))

	var logs bytes.Buffer
	p, err := NewProducer(ProducerConfig{Root: root, Sensor: testSensor, Classes: []int{4}, Progress: &logs})
	require.NoError(t, err)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Variants)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.FrameErrors)
	assert.Len(t, summary.Errors, 2)
	assert.FileExists(t, good.BoxPath(testSensor))
	assert.NoFileExists(t, bad.BoxPath(testSensor))
	assert.NotEmpty(t, logs.String(), "progress bar should render")
}

func TestProducer_Cancelled(t *testing.T) {
	root := t.TempDir()
	seedVariant(t, root, dataset.Collision, "1_c-1", "Town01_ClearNoon_low_1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := NewProducer(ProducerConfig{Root: root, Sensor: testSensor, Classes: []int{4}})
	require.NoError(t, err)
	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(ProducerConfig{Sensor: testSensor})
	assert.Error(t, err)
	_, err = NewProducer(ProducerConfig{Root: "x"})
	assert.Error(t, err)
	_, err = NewProducer(ProducerConfig{Root: "x", Sensor: testSensor, MinArea: -1})
	assert.Error(t, err)

	p, err := NewProducer(ProducerConfig{Root: "x", Sensor: testSensor})
	require.NoError(t, err)
	assert.Equal(t, "png", p.cfg.Ext)
	assert.Equal(t, 1, p.cfg.Workers)
	assert.Equal(t, testSensor, p.cfg.OutputName)
}
