// Package bbox reads and writes per-frame box files and turns recorded
// instance masks into them in bulk.
package bbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/banshee-data/scenario.report/internal/mask"
)

// FrameBoxes maps a frame number to the boxes found in that frame. It
// serialises as {"<frame>": [{"actor_id", "class", "box"}]}.
type FrameBoxes map[int][]mask.Box

// Frames returns the frame numbers in ascending order.
func (fb FrameBoxes) Frames() []int {
	frames := make([]int, 0, len(fb))
	for f := range fb {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames
}

// Count returns the total number of boxes across all frames.
func (fb FrameBoxes) Count() int {
	n := 0
	for _, boxes := range fb {
		n += len(boxes)
	}
	return n
}

// ClassCounts tallies boxes per (remapped) class.
func (fb FrameBoxes) ClassCounts() map[int]int {
	counts := make(map[int]int)
	for _, boxes := range fb {
		for _, b := range boxes {
			counts[b.Class]++
		}
	}
	return counts
}

// Actors returns the distinct actor ids seen, sorted.
func (fb FrameBoxes) Actors() []int {
	seen := make(map[int]bool)
	for _, boxes := range fb {
		for _, b := range boxes {
			seen[b.ActorID] = true
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Write stores the boxes at path, creating parent directories. The file
// is written to a temporary name first and renamed into place.
func Write(path string, fb FrameBoxes) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create box directory: %w", err)
	}
	for f, boxes := range fb {
		if boxes == nil {
			fb[f] = []mask.Box{}
		}
	}
	data, err := json.MarshalIndent(fb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode boxes: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Read loads a box file written by Write.
func Read(path string) (FrameBoxes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fb := FrameBoxes{}
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fb, nil
}
