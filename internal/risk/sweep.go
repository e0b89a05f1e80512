package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RangeSpec is an inclusive threshold range.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// maxThresholds bounds the number of values a range may expand to.
const maxThresholds = 10000

// ParseRangeSpec parses "min:max:step". Bounds must lie within [0, 1].
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}
	var vals [3]float64
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}
	spec := RangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}
	if math.IsNaN(spec.Step) || math.IsInf(spec.Step, 0) || spec.Step <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be a positive finite number, got %v", spec.Step)
	}
	if spec.Min > spec.Max {
		return RangeSpec{}, fmt.Errorf("min %v is greater than max %v", spec.Min, spec.Max)
	}
	if err := checkThreshold(spec.Min); err != nil {
		return RangeSpec{}, err
	}
	if err := checkThreshold(spec.Max); err != nil {
		return RangeSpec{}, err
	}
	if (spec.Max-spec.Min)/spec.Step+1 > maxThresholds {
		return RangeSpec{}, fmt.Errorf("range %q expands to more than %d thresholds", s, maxThresholds)
	}
	return spec, nil
}

// Values expands the range into ascending thresholds, rounded to 1e-6 so
// that accumulated step error does not leak into the output.
func (r RangeSpec) Values() []float64 {
	if !(r.Step > 0) || math.IsInf(r.Step, 0) || !(r.Min <= r.Max) {
		return nil
	}
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	if n < 1 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 0; i < n && i < maxThresholds; i++ {
		v := math.Round((r.Min+float64(i)*r.Step)*1e6) / 1e6
		if v > r.Max {
			break
		}
		out = append(out, v)
	}
	return out
}

// ParseThresholds accepts either a range spec or a comma-separated list.
func ParseThresholds(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return spec.Values(), nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", part, err)
		}
		if err := checkThreshold(v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Sweep runs a scenario-level evaluation at each go threshold and returns
// one curve point per threshold in the order given.
func Sweep(table Table, gt GroundTruth, thresholds []float64, window int) ([]Point, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("no thresholds to sweep")
	}
	points := make([]Point, 0, len(thresholds))
	for _, thr := range thresholds {
		res, err := Evaluate(table, gt, Config{Window: window, GoThreshold: thr})
		if err != nil {
			return nil, fmt.Errorf("threshold %v: %w", thr, err)
		}
		points = append(points, NewPoint(thr, res.Confusion))
	}
	return points, nil
}

// SweepFrames runs a frame-level evaluation at each risk threshold.
func SweepFrames(table Table, gt GroundTruth, thresholds []float64) ([]Point, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("no thresholds to sweep")
	}
	points := make([]Point, 0, len(thresholds))
	for _, thr := range thresholds {
		c, err := EvaluateFrames(table, gt, thr)
		if err != nil {
			return nil, fmt.Errorf("threshold %v: %w", thr, err)
		}
		points = append(points, NewPoint(thr, c))
	}
	return points, nil
}
