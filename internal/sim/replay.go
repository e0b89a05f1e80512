package sim

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/monitoring"
)

// ReplayClient replays the sensor frames of a recorded variant directory.
// Each Tick advances to the next recorded frame number and delivers that
// frame to every listening sensor whose directory holds it.
type ReplayClient struct {
	dir string

	mu         sync.Mutex
	closed     bool
	frames     []int
	next       int
	sync       bool
	fixedDelta time.Duration
	town       string
	weather    string
	actors     []Actor
	sensors    []*replaySensor
	nextID     int
}

// NewReplayClient opens a recorded variant directory. Every sub-directory
// except the box directory is treated as a sensor.
func NewReplayClient(dir string) (*ReplayClient, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay directory: %w", err)
	}
	seen := make(map[int]bool)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == dataset.BoxDirName {
			continue
		}
		subdir := filepath.Join(dir, e.Name())
		for _, ext := range []string{"png", "ply"} {
			frames, err := dataset.ListFrames(subdir, ext)
			if err != nil {
				return nil, err
			}
			for _, f := range frames {
				seen[f] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no recorded frames under %s", dir)
	}
	frames := make([]int, 0, len(seen))
	for f := range seen {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return &ReplayClient{dir: dir, frames: frames, sync: true, fixedDelta: 50 * time.Millisecond, nextID: 1}, nil
}

// Frames returns the number of frames available for replay.
func (c *ReplayClient) Frames() int {
	return len(c.frames)
}

func (c *ReplayClient) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed {
		return ErrClosed
	}
	return nil
}

// LoadWorld records the requested town. Replay does not change worlds.
func (c *ReplayClient) LoadWorld(ctx context.Context, town string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return err
	}
	c.town = town
	monitoring.Debugf("replay: world %s", town)
	return nil
}

// SetWeather records the requested preset.
func (c *ReplayClient) SetWeather(ctx context.Context, preset string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return err
	}
	c.weather = preset
	return nil
}

// SetSynchronous selects whether Tick waits for sensor callbacks to finish.
func (c *ReplayClient) SetSynchronous(ctx context.Context, enabled bool, fixedDelta time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return err
	}
	if fixedDelta < 0 {
		return fmt.Errorf("fixed delta must be non-negative, got %s", fixedDelta)
	}
	c.sync = enabled
	if fixedDelta > 0 {
		c.fixedDelta = fixedDelta
	}
	return nil
}

// SpawnActor hands out a new actor id.
func (c *ReplayClient) SpawnActor(ctx context.Context, spec ActorSpec) (Actor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return Actor{}, err
	}
	if spec.Blueprint == "" {
		return Actor{}, fmt.Errorf("actor blueprint is required")
	}
	a := Actor{ID: c.nextID, Blueprint: spec.Blueprint, Role: spec.Role}
	c.nextID++
	c.actors = append(c.actors, a)
	return a, nil
}

// AttachSensor binds a sensor to the recorded directory of the same name.
func (c *ReplayClient) AttachSensor(ctx context.Context, spec SensorSpec, parent Actor) (Sensor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	dir := filepath.Join(c.dir, spec.Name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no recording for sensor %s in %s", spec.Name, c.dir)
	}
	s := &replaySensor{name: spec.Name, kind: spec.Kind, dir: dir}
	c.sensors = append(c.sensors, s)
	return s, nil
}

// Tick delivers the next recorded frame. It returns io.EOF once every
// recorded frame has been replayed.
func (c *ReplayClient) Tick(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if err := c.check(ctx); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	if c.next >= len(c.frames) {
		c.mu.Unlock()
		return 0, io.EOF
	}
	frame := c.frames[c.next]
	ts := time.Duration(c.next) * c.fixedDelta
	c.next++
	sensors := append([]*replaySensor(nil), c.sensors...)
	wait := c.sync
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sensors {
		s.deliver(frame, ts, &wg)
	}
	if wait {
		wg.Wait()
	}
	return uint64(frame), nil
}

// DestroyAll stops every sensor and forgets every actor.
func (c *ReplayClient) DestroyAll(ctx context.Context) error {
	c.mu.Lock()
	sensors := c.sensors
	c.sensors = nil
	c.actors = nil
	c.mu.Unlock()
	for _, s := range sensors {
		s.Stop()
	}
	return nil
}

// Close destroys everything and rejects further calls.
func (c *ReplayClient) Close() error {
	if err := c.DestroyAll(context.Background()); err != nil {
		return err
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Actors returns the spawned actors.
func (c *ReplayClient) Actors() []Actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Actor(nil), c.actors...)
}

type delivery struct {
	frame int
	ts    time.Duration
	done  *sync.WaitGroup
}

// replaySensor reads its frames from disk and hands them to the listener
// on its own goroutine.
type replaySensor struct {
	name string
	kind SensorKind
	dir  string

	mu      sync.Mutex
	queue   chan delivery
	stopped chan struct{}
}

func (s *replaySensor) Name() string     { return s.name }
func (s *replaySensor) Kind() SensorKind { return s.kind }

func (s *replaySensor) Listen(fn func(Measurement)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan delivery, 16)
	s.stopped = make(chan struct{})
	go func(queue <-chan delivery, stopped chan<- struct{}) {
		defer close(stopped)
		for d := range queue {
			m, err := s.load(d.frame, d.ts)
			if err != nil {
				if !os.IsNotExist(err) {
					monitoring.Logf("replay: sensor %s frame %d: %v", s.name, d.frame, err)
				}
			} else {
				fn(m)
			}
			d.done.Done()
		}
	}(s.queue, s.stopped)
}

// deliver queues a frame. It reports false when the sensor is not
// listening.
func (s *replaySensor) deliver(frame int, ts time.Duration, wg *sync.WaitGroup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return false
	}
	wg.Add(1)
	s.queue <- delivery{frame: frame, ts: ts, done: wg}
	return true
}

func (s *replaySensor) Stop() {
	s.mu.Lock()
	queue, stopped := s.queue, s.stopped
	s.queue = nil
	s.mu.Unlock()
	if queue != nil {
		close(queue)
		<-stopped
	}
}

func (s *replaySensor) load(frame int, ts time.Duration) (Measurement, error) {
	m := Measurement{Sensor: s.name, Kind: s.kind, Frame: uint64(frame), Timestamp: ts}
	f, err := os.Open(filepath.Join(s.dir, dataset.FrameFileName(frame, s.kind.Ext())))
	if err != nil {
		return m, err
	}
	defer f.Close()
	if s.kind == Lidar {
		m.Points, err = ReadPLY(f)
		return m, err
	}
	m.Image, _, err = image.Decode(f)
	return m, err
}
