package collect

import (
	"image"
	"image/color"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/mask"
	"github.com/banshee-data/scenario.report/internal/sim"
)

func newSession(t *testing.T, opts SessionOptions) *Session {
	t.Helper()
	ref, err := dataset.NewScenarioRef(t.TempDir(), dataset.Obstacle, "2_o-1", "Town02_ClearNoon_cone_3")
	require.NoError(t, err)
	return NewSession(ref, opts)
}

func imageMeasurement(sensor string, frame uint64) sim.Measurement {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.NRGBA{R: 4, G: 7, A: 255})
	return sim.Measurement{Sensor: sensor, Kind: sim.InstanceSegmentation, Frame: frame, Image: img}
}

func TestRecordingState(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
	assert.Equal(t, "RecordingState(7)", RecordingState(7).String())
	assert.Equal(t, Recording, Idle.Toggled())
	assert.Equal(t, Idle, Recording.Toggled())
	text, err := Recording.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "recording", string(text))

	var back RecordingState
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, Recording, back)
	assert.Error(t, back.UnmarshalText([]byte("paused")))
}

func TestSession_DiscardsWhileIdle(t *testing.T) {
	s := newSession(t, SessionOptions{})
	assert.Equal(t, Idle, s.State())

	s.Handle(imageMeasurement("instance_segmentation", 1))
	s.Handle(imageMeasurement("instance_segmentation", 2))
	require.NoError(t, s.Flush())

	stats := s.Stats()
	assert.Equal(t, 2, stats.Discarded)
	assert.Equal(t, 0, stats.Buffered)
	assert.Empty(t, stats.Written)
	assert.NoDirExists(t, s.Ref().SensorDir("instance_segmentation"))
}

func TestSession_ToggleRecordsAndFlushes(t *testing.T) {
	s := newSession(t, SessionOptions{})

	state, err := s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Recording, state)

	s.Handle(imageMeasurement("instance_segmentation", 7))
	s.Handle(sim.Measurement{Sensor: "lidar", Kind: sim.Lidar, Frame: 7, Points: []sim.LidarPoint{{X: 1, Y: 2, Z: 3}}})
	assert.Equal(t, 2, s.Stats().Buffered)

	state, err = s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Idle, state)

	stats := s.Stats()
	assert.Equal(t, 0, stats.Buffered)
	assert.Equal(t, map[string]int{"instance_segmentation": 1, "lidar": 1}, stats.Written)

	m, err := mask.Load(s.Ref().FramePath("instance_segmentation", 7, "png"))
	require.NoError(t, err)
	assert.Equal(t, uint8(4), m.Class[1*4+1])
	assert.Equal(t, uint8(7), m.InstLow[1*4+1])

	f, err := os.Open(s.Ref().FramePath("lidar", 7, "ply"))
	require.NoError(t, err)
	defer f.Close()
	points, err := sim.ReadPLY(f)
	require.NoError(t, err)
	assert.Equal(t, []sim.LidarPoint{{X: 1, Y: 2, Z: 3}}, points)
}

func TestSession_MaxBufferedFlushesAutomatically(t *testing.T) {
	s := newSession(t, SessionOptions{MaxBuffered: 2, StartRecording: true})
	for frame := uint64(0); frame < 5; frame++ {
		s.Handle(imageMeasurement("rgb", frame))
	}
	stats := s.Stats()
	assert.Equal(t, 4, stats.Written["rgb"])
	assert.Equal(t, 1, stats.Buffered)
}

func TestSession_FailedFramesAreReported(t *testing.T) {
	s := newSession(t, SessionOptions{StartRecording: true})
	s.Handle(sim.Measurement{Sensor: "rgb", Kind: sim.RGB, Frame: 1})
	s.Handle(imageMeasurement("rgb", 2))

	err := s.Stop()
	assert.Error(t, err)
	stats := s.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Written["rgb"])
	assert.NoFileExists(t, s.Ref().FramePath("rgb", 1, "png"))
}

func TestSession_ConcurrentCallbacks(t *testing.T) {
	s := newSession(t, SessionOptions{StartRecording: true})
	var wg sync.WaitGroup
	for _, sensor := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(sensor string) {
			defer wg.Done()
			cb := s.Listener()
			for frame := uint64(0); frame < 25; frame++ {
				cb(imageMeasurement(sensor, frame))
			}
		}(sensor)
	}
	wg.Wait()
	require.NoError(t, s.Stop())
	stats := s.Stats()
	for _, sensor := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 25, stats.Written[sensor], sensor)
	}
}
