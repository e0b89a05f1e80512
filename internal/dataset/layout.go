// Package dataset describes the on-disk layout of collected scenarios.
//
// Every tool in this repository reads or writes files under
//
//	<root>/<scenario_type>/<scenario_id>/variant_scenario/<variant>/<sensor>/<frame>.<ext>
//
// and derived box files under <variant>/bbox/<sensor>.json. Nothing else is
// shared between the tools.
package dataset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/scenario.report/internal/security"
)

// VariantDirName is the directory holding the randomized variants of a scenario.
const VariantDirName = "variant_scenario"

// BoxDirName is the per-variant directory holding derived box files.
const BoxDirName = "bbox"

// ScenarioType labels the kind of driving situation a scenario captures.
type ScenarioType string

const (
	Interactive    ScenarioType = "interactive"
	NonInteractive ScenarioType = "non-interactive"
	Obstacle       ScenarioType = "obstacle"
	Collision      ScenarioType = "collision"
)

// ScenarioTypes lists every known type in directory order.
var ScenarioTypes = []ScenarioType{Collision, Interactive, NonInteractive, Obstacle}

// ParseScenarioType validates a scenario type name.
func ParseScenarioType(s string) (ScenarioType, error) {
	for _, t := range ScenarioTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown scenario type %q", s)
}

// HasRiskObject reports whether scenarios of this type are expected to
// contain a causal risk object.
func (t ScenarioType) HasRiskObject() bool {
	return t != NonInteractive
}

// Variant is one randomized instantiation of a base scenario.
type Variant struct {
	Town      string
	Weather   string
	ActorType string
	Seed      int64
}

// Name returns the variant directory name <town>_<weather>_<actor>_<seed>.
func (v Variant) Name() string {
	return fmt.Sprintf("%s_%s_%s_%d", v.Town, v.Weather, v.ActorType, v.Seed)
}

// ParseVariant splits a variant directory name. The actor type may itself
// contain underscores; town and weather may not.
func ParseVariant(name string) (Variant, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return Variant{}, fmt.Errorf("invalid variant name %q: expected town_weather_actor_seed", name)
	}
	seed, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return Variant{}, fmt.Errorf("invalid variant seed in %q: %w", name, err)
	}
	v := Variant{
		Town:      parts[0],
		Weather:   parts[1],
		ActorType: strings.Join(parts[2:len(parts)-1], "_"),
		Seed:      seed,
	}
	if v.Town == "" || v.Weather == "" || v.ActorType == "" {
		return Variant{}, fmt.Errorf("invalid variant name %q: empty component", name)
	}
	return v, nil
}

// ScenarioRef addresses one variant directory of one scenario.
type ScenarioRef struct {
	Root       string
	Type       ScenarioType
	ScenarioID string
	Variant    string
}

// NewScenarioRef builds a reference and checks that it stays inside root.
func NewScenarioRef(root string, typ ScenarioType, scenarioID, variant string) (ScenarioRef, error) {
	if _, err := ParseScenarioType(string(typ)); err != nil {
		return ScenarioRef{}, err
	}
	for _, part := range []string{scenarioID, variant} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return ScenarioRef{}, fmt.Errorf("invalid path component %q", part)
		}
	}
	ref := ScenarioRef{Root: root, Type: typ, ScenarioID: scenarioID, Variant: variant}
	if err := security.ValidatePathWithinDirectory(ref.Dir(), root); err != nil {
		return ScenarioRef{}, err
	}
	return ref, nil
}

// Dir is the variant directory.
func (r ScenarioRef) Dir() string {
	return filepath.Join(r.Root, string(r.Type), r.ScenarioID, VariantDirName, r.Variant)
}

// SensorDir is the directory holding one sensor's frames.
func (r ScenarioRef) SensorDir(sensor string) string {
	return filepath.Join(r.Dir(), sensor)
}

// FramePath is the file for one frame of one sensor.
func (r ScenarioRef) FramePath(sensor string, frame int, ext string) string {
	return filepath.Join(r.SensorDir(sensor), FrameFileName(frame, ext))
}

// BoxPath is the derived box file for a sensor.
func (r ScenarioRef) BoxPath(sensor string) string {
	return filepath.Join(r.Dir(), BoxDirName, sensor+".json")
}

// Key identifies the variant inside risk tables: <scenario_id>/<variant>.
func (r ScenarioRef) Key() string {
	return r.ScenarioID + "/" + r.Variant
}

func (r ScenarioRef) String() string {
	return string(r.Type) + "/" + r.Key()
}

// FrameFileName formats a zero-padded frame file name.
func FrameFileName(frame int, ext string) string {
	return fmt.Sprintf("%08d.%s", frame, strings.TrimPrefix(ext, "."))
}

// ParseFrameNumber extracts the frame number from a frame file name.
func ParseFrameNumber(name string) (int, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(stem)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a frame file: %q", base)
	}
	return n, nil
}
