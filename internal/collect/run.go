package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/sim"
)

// Reasons a run stopped.
const (
	StopFrameLimit = "frame limit reached"
	StopCancelled  = "cancelled"
	StopQuit       = "quit requested"
	StopExhausted  = "simulator has no more frames"
)

// RunStats describes a finished run.
type RunStats struct {
	Ticks      int           `json:"ticks"`
	FirstFrame uint64        `json:"first_frame"`
	LastFrame  uint64        `json:"last_frame"`
	Toggles    int           `json:"toggles"`
	Actors     int           `json:"actors"`
	Elapsed    time.Duration `json:"elapsed"`
	Reason     string        `json:"reason"`
	Session    Stats         `json:"session"`
}

// Run executes plan against client, feeding every sensor into session.
// keys may be nil; otherwise 'r' toggles recording and 'q' or Escape stops
// the run. Cancelling ctx stops the run cleanly. On return every sensor is
// stopped, every actor destroyed and the session flushed.
func Run(ctx context.Context, client sim.Client, plan *Plan, session *Session, keys <-chan Key) (stats RunStats, err error) {
	start := time.Now()
	if err := plan.Validate(); err != nil {
		return stats, err
	}

	if err := client.LoadWorld(ctx, plan.Town); err != nil {
		return stats, fmt.Errorf("load world %s: %w", plan.Town, err)
	}
	if err := client.SetWeather(ctx, plan.Weather); err != nil {
		return stats, fmt.Errorf("set weather %s: %w", plan.Weather, err)
	}
	if err := client.SetSynchronous(ctx, plan.Synchronous, plan.FixedDelta); err != nil {
		return stats, fmt.Errorf("set synchronous mode: %w", err)
	}

	var sensors []sim.Sensor
	defer func() {
		for _, s := range sensors {
			s.Stop()
		}
		if derr := client.DestroyAll(context.Background()); derr != nil {
			monitoring.Logf("collect: destroy actors: %v", derr)
		}
		ferr := session.Stop()
		stats.Session = session.Stats()
		stats.Elapsed = time.Since(start)
		err = errors.Join(err, ferr)
	}()

	ego, err := client.SpawnActor(ctx, plan.Ego)
	if err != nil {
		return stats, fmt.Errorf("spawn ego %s: %w", plan.Ego.Blueprint, err)
	}
	stats.Actors = 1
	for _, spec := range plan.Actors {
		if _, err := client.SpawnActor(ctx, spec); err != nil {
			monitoring.Logf("collect: could not spawn %s: %v", spec.Blueprint, err)
			continue
		}
		stats.Actors++
	}
	for _, spec := range plan.Sensors {
		s, err := client.AttachSensor(ctx, spec, ego)
		if err != nil {
			return stats, fmt.Errorf("attach sensor %s: %w", spec.Name, err)
		}
		sensors = append(sensors, s)
		s.Listen(session.Listener())
	}

	if plan.Record {
		session.Start()
	}

loop:
	for {
		if plan.Frames > 0 && stats.Ticks >= plan.Frames {
			stats.Reason = StopFrameLimit
			break
		}
		select {
		case <-ctx.Done():
			stats.Reason = StopCancelled
			break loop
		case k, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch k {
			case KeyToggle:
				state, err := session.Toggle()
				stats.Toggles++
				if err != nil {
					monitoring.Logf("collect: flush on toggle: %v", err)
				}
				monitoring.Logf("collect: %s at frame %d", state, stats.LastFrame)
			case KeyQuit, KeyEscape, keyCtrlC:
				stats.Reason = StopQuit
				break loop
			}
			continue
		default:
		}

		frame, err := client.Tick(ctx)
		switch {
		case errors.Is(err, io.EOF):
			stats.Reason = StopExhausted
			break loop
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			stats.Reason = StopCancelled
			break loop
		case err != nil:
			return stats, fmt.Errorf("tick %d: %w", stats.Ticks, err)
		}
		if stats.Ticks == 0 {
			stats.FirstFrame = frame
		}
		stats.LastFrame = frame
		stats.Ticks++
	}
	monitoring.Logf("collect: %s after %d ticks", stats.Reason, stats.Ticks)
	return stats, nil
}
