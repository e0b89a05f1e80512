package bbox

import (
	"image"
	"sort"

	"github.com/banshee-data/scenario.report/internal/mask"
)

// IoU is the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// Pair is one matched box pair, as indexes into the inputs of Match.
type Pair struct {
	A, B int
	IoU  float64
}

// Match pairs boxes of the same class greedily by descending IoU. Pairs
// below minIoU are never matched. The unmatched indexes of both inputs are
// returned in ascending order.
func Match(a, b []mask.Box, minIoU float64) (pairs []Pair, onlyA, onlyB []int) {
	var candidates []Pair
	for i := range a {
		for j := range b {
			if a[i].Class != b[j].Class {
				continue
			}
			if iou := IoU(a[i].Rect, b[j].Rect); iou > 0 && iou >= minIoU {
				candidates = append(candidates, Pair{A: i, B: j, IoU: iou})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].IoU > candidates[j].IoU })

	usedA := make([]bool, len(a))
	usedB := make([]bool, len(b))
	for _, c := range candidates {
		if usedA[c.A] || usedB[c.B] {
			continue
		}
		usedA[c.A], usedB[c.B] = true, true
		pairs = append(pairs, c)
	}
	for i, used := range usedA {
		if !used {
			onlyA = append(onlyA, i)
		}
	}
	for j, used := range usedB {
		if !used {
			onlyB = append(onlyB, j)
		}
	}
	return pairs, onlyA, onlyB
}

// Comparison summarises the agreement of two box files.
type Comparison struct {
	Frames      int     `json:"frames"`
	Matched     int     `json:"matched"`
	OnlyA       int     `json:"only_a"`
	OnlyB       int     `json:"only_b"`
	MeanIoU     float64 `json:"mean_iou"`
	MissingInA  int     `json:"frames_missing_in_a"`
	MissingInB  int     `json:"frames_missing_in_b"`
	SameActorID int     `json:"same_actor_id"`
}

// Compare matches every frame present in either file.
func Compare(a, b FrameBoxes, minIoU float64) Comparison {
	frames := make(map[int]bool)
	for f := range a {
		frames[f] = true
	}
	for f := range b {
		frames[f] = true
	}

	var c Comparison
	var iouSum float64
	for f := range frames {
		boxesA, inA := a[f]
		boxesB, inB := b[f]
		if !inA {
			c.MissingInA++
		}
		if !inB {
			c.MissingInB++
		}
		c.Frames++
		pairs, onlyA, onlyB := Match(boxesA, boxesB, minIoU)
		c.Matched += len(pairs)
		c.OnlyA += len(onlyA)
		c.OnlyB += len(onlyB)
		for _, p := range pairs {
			iouSum += p.IoU
			if boxesA[p.A].ActorID == boxesB[p.B].ActorID {
				c.SameActorID++
			}
		}
	}
	if c.Matched > 0 {
		c.MeanIoU = iouSum / float64(c.Matched)
	}
	return c
}
