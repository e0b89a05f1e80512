package mask

import (
	"encoding/json"
	"fmt"
	"image"
	"sort"
)

// The class tag 9 is reported as 20 in box output.
const (
	remapFrom = 9
	remapTo   = 20
)

// Box is the bounding box of one (class, instance) group of pixels.
// Rect follows image.Rectangle conventions: Max is exclusive.
type Box struct {
	ActorID int
	Class   int
	Rect    image.Rectangle
}

type boxJSON struct {
	ActorID int    `json:"actor_id"`
	Class   int    `json:"class"`
	Box     [4]int `json:"box"`
}

// MarshalJSON writes {"actor_id", "class", "box": [x1, y1, x2, y2]}.
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(boxJSON{
		ActorID: b.ActorID,
		Class:   b.Class,
		Box:     [4]int{b.Rect.Min.X, b.Rect.Min.Y, b.Rect.Max.X, b.Rect.Max.Y},
	})
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (b *Box) UnmarshalJSON(data []byte) error {
	var raw boxJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.ActorID = raw.ActorID
	b.Class = raw.Class
	b.Rect = image.Rect(raw.Box[0], raw.Box[1], raw.Box[2], raw.Box[3])
	return nil
}

// Area is the box area in pixels.
func (b Box) Area() int {
	return b.Rect.Dx() * b.Rect.Dy()
}

// GroupKey combines a pixel's class and instance bytes into one id:
// class + 256*instance_low + 65536*instance_high.
func GroupKey(class, low, high uint8) uint32 {
	return uint32(class) + 256*uint32(low) + 65536*uint32(high)
}

// RemapClass applies the fixed output class remap.
func RemapClass(class int) int {
	if class == remapFrom {
		return remapTo
	}
	return class
}

type group struct {
	class, low, high       uint8
	minX, minY, maxX, maxY int
	area                   int
}

// ExtractBoxes groups the pixels whose class is listed in classes by
// (class, instance), drops groups covering fewer than minArea pixels and
// returns the tight bounding box of each remaining group, ordered by group
// key. Class ids outside 0-255 are ignored.
func ExtractBoxes(m *Mask, classes []int, minArea int) ([]Box, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var wanted [256]bool
	anyWanted := false
	for _, c := range classes {
		if c >= 0 && c <= 255 {
			wanted[c] = true
			anyWanted = true
		}
	}
	if !anyWanted {
		return []Box{}, nil
	}

	groups := make(map[uint32]*group)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			c := m.Class[i]
			if !wanted[c] {
				continue
			}
			key := GroupKey(c, m.InstLow[i], m.InstHigh[i])
			g, ok := groups[key]
			if !ok {
				g = &group{class: c, low: m.InstLow[i], high: m.InstHigh[i], minX: x, minY: y, maxX: x, maxY: y}
				groups[key] = g
			}
			g.area++
			g.minX = min(g.minX, x)
			g.minY = min(g.minY, y)
			g.maxX = max(g.maxX, x)
			g.maxY = max(g.maxY, y)
		}
	}

	keys := make([]uint32, 0, len(groups))
	for k, g := range groups {
		if g.area >= minArea {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	boxes := make([]Box, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		boxes = append(boxes, Box{
			ActorID: int(g.low) + 256*int(g.high),
			Class:   RemapClass(int(g.class)),
			Rect:    image.Rect(g.minX, g.minY, g.maxX+1, g.maxY+1),
		})
	}
	return boxes, nil
}

// String is a compact form used in logs.
func (b Box) String() string {
	return fmt.Sprintf("actor=%d class=%d box=[%d %d %d %d]", b.ActorID, b.Class,
		b.Rect.Min.X, b.Rect.Min.Y, b.Rect.Max.X, b.Rect.Max.Y)
}
