package collect

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/sim"
)

// maxPlanSize caps plan files read from disk.
const maxPlanSize = 1 << 20

// Plan describes one collection run.
type Plan struct {
	ScenarioType dataset.ScenarioType `yaml:"scenario_type"`
	ScenarioID   string               `yaml:"scenario_id"`
	Town         string               `yaml:"town"`
	Weather      string               `yaml:"weather"`
	ActorType    string               `yaml:"actor_type"`
	Seed         int64                `yaml:"seed"`

	// Frames is the number of ticks to run; 0 runs until stopped.
	Frames      int           `yaml:"frames"`
	Synchronous bool          `yaml:"synchronous"`
	FixedDelta  time.Duration `yaml:"fixed_delta"`
	// Record starts the session recording instead of waiting for a toggle.
	Record bool `yaml:"record"`

	Ego     sim.ActorSpec    `yaml:"ego"`
	Actors  []sim.ActorSpec  `yaml:"actors"`
	Sensors []sim.SensorSpec `yaml:"sensors"`
}

// LoadPlan reads and validates a YAML plan.
func LoadPlan(path string) (*Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat plan: %w", err)
	}
	if info.Size() > maxPlanSize {
		return nil, fmt.Errorf("plan file too large: %d bytes (max %d)", info.Size(), maxPlanSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &p, nil
}

func (p *Plan) applyDefaults() {
	if p.Weather == "" {
		p.Weather = "ClearNoon"
	}
	if p.Synchronous && p.FixedDelta == 0 {
		p.FixedDelta = 50 * time.Millisecond
	}
	if p.Ego.Blueprint == "" {
		p.Ego.Blueprint = "vehicle.lincoln.mkz_2020"
	}
	if p.Ego.Role == "" {
		p.Ego.Role = "hero"
	}
}

// Validate checks that the plan can be run and names a valid variant.
func (p *Plan) Validate() error {
	if _, err := dataset.ParseScenarioType(string(p.ScenarioType)); err != nil {
		return err
	}
	if p.ScenarioID == "" {
		return errors.New("scenario_id is required")
	}
	if p.Town == "" {
		return errors.New("town is required")
	}
	if p.ActorType == "" {
		return errors.New("actor_type is required")
	}
	if p.Frames < 0 {
		return fmt.Errorf("frames must be non-negative, got %d", p.Frames)
	}
	if p.FixedDelta < 0 {
		return fmt.Errorf("fixed_delta must be non-negative, got %s", p.FixedDelta)
	}
	if len(p.Sensors) == 0 {
		return errors.New("at least one sensor is required")
	}
	names := make(map[string]bool, len(p.Sensors))
	for _, s := range p.Sensors {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.Name == dataset.BoxDirName {
			return fmt.Errorf("sensor name %q is reserved", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate sensor name %q", s.Name)
		}
		names[s.Name] = true
	}
	parsed, err := dataset.ParseVariant(p.Variant().Name())
	if err != nil {
		return err
	}
	if parsed != p.Variant() {
		return fmt.Errorf("town and weather must not contain underscores: %q", p.Variant().Name())
	}
	return nil
}

// Variant is the variant this plan records.
func (p *Plan) Variant() dataset.Variant {
	return dataset.Variant{Town: p.Town, Weather: p.Weather, ActorType: p.ActorType, Seed: p.Seed}
}

// Ref resolves the output variant directory under root.
func (p *Plan) Ref(root string) (dataset.ScenarioRef, error) {
	return dataset.NewScenarioRef(root, p.ScenarioType, p.ScenarioID, p.Variant().Name())
}
