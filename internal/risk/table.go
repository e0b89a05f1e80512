// Package risk evaluates pre-computed per-object risk scores against
// ground-truth causal objects. A scenario triggers when the same object
// stays the top-scoring one over a window of consecutive frames while the
// ego's go confidence is below a threshold.
package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// GoKey is the reserved frame entry holding the ego's go confidence.
const GoKey = "scenario_go"

// maxTableSize caps risk and ground-truth files read from disk.
const maxTableSize = 256 << 20

// Frame is one frame of a risk table: the go confidence and a risk score
// per object id.
type Frame struct {
	Go     float64
	HasGo  bool
	Scores map[string]float64
}

// UnmarshalJSON decodes {"scenario_go": f, "<id>": f, ...}. Null scores
// are dropped.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Frame{Scores: make(map[string]float64, len(raw))}
	for k, v := range raw {
		if v == nil {
			continue
		}
		if k == GoKey {
			f.Go, f.HasGo = *v, true
			continue
		}
		f.Scores[k] = *v
	}
	return nil
}

// MarshalJSON encodes the frame in the same shape it is read from.
func (f Frame) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(f.Scores)+1)
	for k, v := range f.Scores {
		out[k] = v
	}
	if f.HasGo {
		out[GoKey] = f.Go
	}
	return json.Marshal(out)
}

// Table maps a scenario key to its frames.
type Table map[string]map[int]Frame

// FrameAt pairs a frame with its number.
type FrameAt struct {
	Number int
	Frame
}

// Keys returns the scenario keys in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Series returns the frames of one scenario in ascending frame order.
func (t Table) Series(key string) []FrameAt {
	frames := t[key]
	series := make([]FrameAt, 0, len(frames))
	for n, f := range frames {
		series = append(series, FrameAt{Number: n, Frame: f})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Number < series[j].Number })
	return series
}

// GroundTruth maps a scenario key to its causal object id. An empty id
// means the scenario has no causal object.
type GroundTruth map[string]string

// UnmarshalJSON accepts string, number or null ids.
func (g *GroundTruth) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(GroundTruth, len(raw))
	for k, v := range raw {
		id, err := decodeObjectID(v)
		if err != nil {
			return fmt.Errorf("ground truth for %q: %w", k, err)
		}
		out[k] = id
	}
	*g = out
	return nil
}

func decodeObjectID(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return "", nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("object id must be a string, number or null: %s", v)
	}
	return n.String(), nil
}

// LoadTable reads a risk table from a JSON file.
func LoadTable(path string) (Table, error) {
	var t Table
	if err := loadJSON(path, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadGroundTruth reads a ground-truth file.
func LoadGroundTruth(path string) (GroundTruth, error) {
	var g GroundTruth
	if err := loadJSON(path, &g); err != nil {
		return nil, err
	}
	return g, nil
}

func loadJSON(path string, v interface{}) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxTableSize {
		return fmt.Errorf("%s too large: %d bytes (max %d)", path, info.Size(), maxTableSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// lessID orders object ids numerically when both are integers and
// lexically otherwise.
func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return ai < bi
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// sortedIDs returns the object ids of a frame with NaN scores removed.
func sortedIDs(f Frame) []string {
	ids := make([]string, 0, len(f.Scores))
	for id, s := range f.Scores {
		if !math.IsNaN(s) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}
