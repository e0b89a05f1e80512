package risk

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scenario.report/internal/monitoring"
)

// Outcome is the confusion-matrix bucket of one scenario.
type Outcome int

const (
	TrueNegative Outcome = iota
	TruePositive
	FalsePositive
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "TP"
	case FalsePositive:
		return "FP"
	case FalseNegative:
		return "FN"
	case TrueNegative:
		return "TN"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText encodes the outcome as its short name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, c := range []Outcome{TrueNegative, TruePositive, FalsePositive, FalseNegative} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Config selects the window length and go threshold of a scenario-level
// evaluation.
type Config struct {
	Window      int     `json:"window"`
	GoThreshold float64 `json:"go_threshold"`
}

// Validate checks the window and threshold bounds.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("window must be at least 1 frame, got %d", c.Window)
	}
	return checkThreshold(c.GoThreshold)
}

func checkThreshold(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("threshold must be within [0, 1], got %v", v)
	}
	return nil
}

// TopObject returns the highest scoring object of a frame. Ties go to the
// smallest id. ok is false when the frame has no scores.
func TopObject(f Frame) (id string, score float64, ok bool) {
	ids := sortedIDs(f)
	if len(ids) == 0 {
		return "", 0, false
	}
	scores := make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = f.Scores[id]
	}
	best := floats.MaxIdx(scores)
	return ids[best], scores[best], true
}

// Decision is the trigger outcome for one scenario.
type Decision struct {
	Triggered  bool   `json:"triggered"`
	ObjectID   string `json:"object_id,omitempty"`
	StartFrame int    `json:"start_frame,omitempty"`
	EndFrame   int    `json:"end_frame,omitempty"`
}

// Decide slides a window of window consecutive frames over series and
// triggers at the first position where every frame has the same top
// object and a go confidence below goThreshold. A frame with no go
// confidence never satisfies the threshold. Frames must be numbered
// consecutively to share a window; a gap in frame numbers restarts it.
func Decide(series []FrameAt, window int, goThreshold float64) (Decision, error) {
	if window < 1 {
		return Decision{}, fmt.Errorf("window must be at least 1 frame, got %d", window)
	}
	if err := checkThreshold(goThreshold); err != nil {
		return Decision{}, err
	}

	// run counts how many frames ending at i share the same top object
	// with go below threshold.
	run := 0
	prev := ""
	prevNumber := 0
	for i, f := range series {
		id, _, ok := TopObject(f.Frame)
		if !ok || !f.HasGo || !(f.Go < goThreshold) {
			run = 0
			prev = ""
			continue
		}
		if run > 0 && id == prev && f.Number == prevNumber+1 {
			run++
		} else {
			run = 1
		}
		prev = id
		prevNumber = f.Number
		if run >= window {
			return Decision{
				Triggered:  true,
				ObjectID:   id,
				StartFrame: series[i-window+1].Number,
				EndFrame:   f.Number,
			}, nil
		}
	}
	return Decision{}, nil
}

// Classify buckets a decision against the ground-truth object id. An empty
// gtID means the scenario has no causal object.
func Classify(d Decision, gtID string) Outcome {
	switch {
	case d.Triggered && gtID != "" && d.ObjectID == gtID:
		return TruePositive
	case d.Triggered:
		return FalsePositive
	case gtID != "":
		return FalseNegative
	}
	return TrueNegative
}

// ScenarioResult is the evaluation of one scenario.
type ScenarioResult struct {
	Key         string   `json:"key"`
	GroundTruth string   `json:"ground_truth,omitempty"`
	Decision    Decision `json:"decision"`
	Outcome     Outcome  `json:"outcome"`
	Frames      int      `json:"frames"`
	// LeadFrames is the number of frames between the trigger and the
	// last recorded frame of the scenario.
	LeadFrames int `json:"lead_frames,omitempty"`
}

// Result is a full scenario-level evaluation.
type Result struct {
	Config    Config           `json:"config"`
	Confusion Confusion        `json:"confusion"`
	Scenarios []ScenarioResult `json:"scenarios"`
	// Unmatched lists ground-truth keys with no risk table entry.
	Unmatched []string `json:"unmatched,omitempty"`
}

// ErrEmptyTable is returned when there is nothing to evaluate.
var ErrEmptyTable = errors.New("risk table has no scenarios")

// Evaluate decides and classifies every scenario in the table. Scenarios
// missing from gt are evaluated as having no causal object.
func Evaluate(table Table, gt GroundTruth, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if len(table) == 0 {
		return Result{}, ErrEmptyTable
	}

	res := Result{Config: cfg, Scenarios: make([]ScenarioResult, 0, len(table))}
	for _, key := range table.Keys() {
		gtID, found := gt[key]
		if !found {
			monitoring.Logf("risk: no ground truth for %s, treating as no causal object", key)
		}
		series := table.Series(key)
		d, err := Decide(series, cfg.Window, cfg.GoThreshold)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", key, err)
		}
		sr := ScenarioResult{
			Key:         key,
			GroundTruth: gtID,
			Decision:    d,
			Outcome:     Classify(d, gtID),
			Frames:      len(series),
		}
		if d.Triggered {
			sr.LeadFrames = series[len(series)-1].Number - d.StartFrame
		}
		res.Confusion.Add(sr.Outcome)
		res.Scenarios = append(res.Scenarios, sr)
	}
	for key := range gt {
		if _, ok := table[key]; !ok {
			res.Unmatched = append(res.Unmatched, key)
		}
	}
	if len(res.Unmatched) > 0 {
		sort.Strings(res.Unmatched)
		monitoring.Logf("risk: %d ground-truth scenarios have no risk scores", len(res.Unmatched))
	}
	return res, nil
}
