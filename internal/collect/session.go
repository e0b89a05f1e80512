package collect

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/sim"
)

// SessionOptions tunes a Session.
type SessionOptions struct {
	// MaxBuffered flushes automatically once this many measurements are
	// buffered. Zero buffers until Stop or Flush.
	MaxBuffered int
	// StartRecording begins in the Recording state.
	StartRecording bool
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	State     RecordingState `json:"state"`
	Buffered  int            `json:"buffered"`
	Written   map[string]int `json:"written"`
	Discarded int            `json:"discarded"`
	Failed    int            `json:"failed"`
}

// Session owns the recording state of one collection run. It is safe for
// concurrent use by sensor callbacks.
type Session struct {
	ref  dataset.ScenarioRef
	opts SessionOptions

	mu        sync.Mutex
	state     RecordingState
	buffers   map[string][]sim.Measurement
	buffered  int
	written   map[string]int
	discarded int
	failed    int

	// flushMu serialises disk writes so frames of one sensor land in order.
	flushMu sync.Mutex
}

// NewSession creates a session writing under ref.
func NewSession(ref dataset.ScenarioRef, opts SessionOptions) *Session {
	s := &Session{
		ref:     ref,
		opts:    opts,
		buffers: make(map[string][]sim.Measurement),
		written: make(map[string]int),
	}
	if opts.StartRecording {
		s.state = Recording
	}
	return s
}

// Ref is the variant the session writes to.
func (s *Session) Ref() dataset.ScenarioRef { return s.ref }

// State returns the current recording state.
func (s *Session) State() RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins recording. Starting twice is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	prev := s.state
	s.state = Recording
	s.mu.Unlock()
	if prev != Recording {
		monitoring.Logf("collect: recording %s", s.ref)
	}
}

// Stop ends recording and flushes everything buffered.
func (s *Session) Stop() error {
	s.mu.Lock()
	prev := s.state
	s.state = Idle
	s.mu.Unlock()
	if prev == Recording {
		monitoring.Logf("collect: stopped recording %s", s.ref)
	}
	return s.Flush()
}

// Toggle flips between Idle and Recording and returns the new state.
// Toggling to Idle flushes.
func (s *Session) Toggle() (RecordingState, error) {
	if s.State() == Recording {
		return Idle, s.Stop()
	}
	s.Start()
	return Recording, nil
}

// Handle buffers a measurement while recording and drops it otherwise.
func (s *Session) Handle(m sim.Measurement) {
	s.mu.Lock()
	if s.state != Recording {
		s.discarded++
		s.mu.Unlock()
		return
	}
	s.buffers[m.Sensor] = append(s.buffers[m.Sensor], m)
	s.buffered++
	full := s.opts.MaxBuffered > 0 && s.buffered >= s.opts.MaxBuffered
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			monitoring.Logf("collect: flush failed: %v", err)
		}
	}
}

// Listener returns a sensor callback bound to this session.
func (s *Session) Listener() func(sim.Measurement) {
	return s.Handle
}

// Flush writes every buffered measurement to disk: images as PNG, LiDAR
// as ASCII PLY. Failed frames are counted and reported in the returned
// error; the rest are still written.
func (s *Session) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	buffers := s.buffers
	s.buffers = make(map[string][]sim.Measurement)
	s.buffered = 0
	s.mu.Unlock()

	sensors := make([]string, 0, len(buffers))
	for name := range buffers {
		sensors = append(sensors, name)
	}
	sort.Strings(sensors)

	var errs []error
	written := make(map[string]int)
	failed := 0
	for _, name := range sensors {
		for _, m := range buffers[name] {
			if err := s.write(m); err != nil {
				errs = append(errs, fmt.Errorf("%s frame %d: %w", name, m.Frame, err))
				failed++
				continue
			}
			written[name]++
		}
	}

	s.mu.Lock()
	for name, n := range written {
		s.written[name] += n
	}
	s.failed += failed
	s.mu.Unlock()
	return errors.Join(errs...)
}

func (s *Session) write(m sim.Measurement) error {
	kind := m.Kind
	if kind == "" {
		kind = sim.RGB
	}
	path := s.ref.FramePath(m.Sensor, int(m.Frame), kind.Ext())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if kind == sim.Lidar {
		err = sim.WritePLY(f, m.Points)
	} else {
		err = writeImage(f, m.Image)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

func writeImage(f *os.File, img image.Image) error {
	if img == nil {
		return errors.New("measurement has no image")
	}
	return png.Encode(f, img)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	written := make(map[string]int, len(s.written))
	for k, v := range s.written {
		written[k] = v
	}
	return Stats{
		State:     s.state,
		Buffered:  s.buffered,
		Written:   written,
		Discarded: s.discarded,
		Failed:    s.failed,
	}
}
