// Package sim is the control surface the collection tools drive. A real
// simulator binding lives outside this module; anything implementing
// Client can be plugged in. ReplayClient replays a recorded variant and
// serves as the development and test backend.
package sim

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("simulator client closed")

// SensorKind names a sensor blueprint family.
type SensorKind string

const (
	RGB                  SensorKind = "rgb"
	Depth                SensorKind = "depth"
	SemanticSegmentation SensorKind = "semantic_segmentation"
	InstanceSegmentation SensorKind = "instance_segmentation"
	Lidar                SensorKind = "lidar"
)

var sensorKinds = []SensorKind{RGB, Depth, SemanticSegmentation, InstanceSegmentation, Lidar}

// ParseSensorKind validates a sensor kind name.
func ParseSensorKind(s string) (SensorKind, error) {
	for _, k := range sensorKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sensor kind %q", s)
}

// Ext is the file extension measurements of this kind are stored with.
func (k SensorKind) Ext() string {
	if k == Lidar {
		return "ply"
	}
	return "png"
}

// Location is a position in world or parent coordinates, in metres.
type Location struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Rotation is an orientation in degrees.
type Rotation struct {
	Pitch float64 `yaml:"pitch" json:"pitch"`
	Yaw   float64 `yaml:"yaw" json:"yaw"`
	Roll  float64 `yaml:"roll" json:"roll"`
}

// Transform places an actor or sensor.
type Transform struct {
	Location `yaml:",inline"`
	Rotation `yaml:",inline"`
}

// ActorSpec describes an actor to spawn.
type ActorSpec struct {
	Blueprint string    `yaml:"blueprint" json:"blueprint"`
	Role      string    `yaml:"role" json:"role,omitempty"`
	Transform Transform `yaml:"transform" json:"transform"`
	Autopilot bool      `yaml:"autopilot" json:"autopilot,omitempty"`
}

// Actor is a spawned actor.
type Actor struct {
	ID        int
	Blueprint string
	Role      string
}

// SensorSpec describes a sensor to attach.
type SensorSpec struct {
	Name      string     `yaml:"name" json:"name"`
	Kind      SensorKind `yaml:"kind" json:"kind"`
	Width     int        `yaml:"width" json:"width,omitempty"`
	Height    int        `yaml:"height" json:"height,omitempty"`
	FOV       float64    `yaml:"fov" json:"fov,omitempty"`
	Transform Transform  `yaml:"transform" json:"transform"`
}

// Validate checks the sensor has a usable name and kind.
func (s SensorSpec) Validate() error {
	if s.Name == "" {
		return errors.New("sensor name is required")
	}
	if _, err := ParseSensorKind(string(s.Kind)); err != nil {
		return fmt.Errorf("sensor %s: %w", s.Name, err)
	}
	if s.Kind != Lidar && (s.Width < 0 || s.Height < 0) {
		return fmt.Errorf("sensor %s: negative image size", s.Name)
	}
	return nil
}

// LidarPoint is one LiDAR return in sensor coordinates.
type LidarPoint struct {
	X, Y, Z   float32
	Intensity float32
}

// Measurement is one sensor reading. Exactly one of Image and Points is
// set, depending on the sensor kind.
type Measurement struct {
	Sensor    string
	Kind      SensorKind
	Frame     uint64
	Timestamp time.Duration // simulation time
	Image     image.Image
	Points    []LidarPoint
}

// Sensor is an attached sensor. Listen callbacks may run on a goroutine
// other than the caller's.
type Sensor interface {
	Name() string
	Kind() SensorKind
	Listen(fn func(Measurement))
	Stop()
}

// Client controls a simulator world.
type Client interface {
	LoadWorld(ctx context.Context, town string) error
	SetWeather(ctx context.Context, preset string) error
	SetSynchronous(ctx context.Context, enabled bool, fixedDelta time.Duration) error
	SpawnActor(ctx context.Context, spec ActorSpec) (Actor, error)
	AttachSensor(ctx context.Context, spec SensorSpec, parent Actor) (Sensor, error)
	// Tick advances the world one step and returns the new frame number.
	Tick(ctx context.Context) (uint64, error)
	DestroyAll(ctx context.Context) error
	Close() error
}
