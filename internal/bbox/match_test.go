package bbox

import (
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/scenario.report/internal/mask"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 4, 4), image.Rect(0, 0, 4, 4), 1},
		{"disjoint", image.Rect(0, 0, 2, 2), image.Rect(5, 5, 6, 6), 0},
		{"touching edges", image.Rect(0, 0, 2, 2), image.Rect(2, 0, 4, 2), 0},
		{"half overlap", image.Rect(0, 0, 2, 2), image.Rect(1, 0, 3, 2), 2.0 / 6.0},
		{"contained", image.Rect(0, 0, 4, 4), image.Rect(1, 1, 3, 3), 4.0 / 16.0},
		{"empty", image.Rectangle{}, image.Rect(0, 0, 1, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU() = %v, want %v", got, tt.want)
			}
			if got := IoU(tt.b, tt.a); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU() not symmetric: %v", got)
			}
		})
	}
}

func TestMatch_GreedyBySameClass(t *testing.T) {
	a := []mask.Box{
		{ActorID: 1, Class: 4, Rect: image.Rect(0, 0, 4, 4)},
		{ActorID: 2, Class: 10, Rect: image.Rect(10, 10, 14, 14)},
		{ActorID: 3, Class: 4, Rect: image.Rect(20, 20, 22, 22)},
	}
	b := []mask.Box{
		{ActorID: 9, Class: 10, Rect: image.Rect(0, 0, 4, 4)}, // wrong class
		{ActorID: 1, Class: 4, Rect: image.Rect(0, 0, 4, 3)},
		{ActorID: 2, Class: 10, Rect: image.Rect(10, 10, 14, 14)},
	}

	pairs, onlyA, onlyB := Match(a, b, 0.5)
	want := []Pair{{A: 1, B: 2, IoU: 1}, {A: 0, B: 1, IoU: 0.75}}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, onlyA); diff != "" {
		t.Errorf("onlyA mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, onlyB); diff != "" {
		t.Errorf("onlyB mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_RespectsMinIoU(t *testing.T) {
	a := []mask.Box{{Class: 4, Rect: image.Rect(0, 0, 2, 2)}}
	b := []mask.Box{{Class: 4, Rect: image.Rect(1, 0, 3, 2)}}
	if pairs, _, _ := Match(a, b, 0.5); len(pairs) != 0 {
		t.Errorf("expected no pairs above 0.5, got %v", pairs)
	}
	if pairs, _, _ := Match(a, b, 0.3); len(pairs) != 1 {
		t.Errorf("expected one pair above 0.3, got %v", pairs)
	}
}

func TestCompare(t *testing.T) {
	a := FrameBoxes{
		0: {{ActorID: 1, Class: 4, Rect: image.Rect(0, 0, 4, 4)}},
		1: {{ActorID: 1, Class: 4, Rect: image.Rect(0, 0, 4, 4)}},
	}
	b := FrameBoxes{
		0: {{ActorID: 7, Class: 4, Rect: image.Rect(0, 0, 4, 4)}},
		2: {{ActorID: 1, Class: 4, Rect: image.Rect(0, 0, 4, 4)}},
	}
	got := Compare(a, b, 0.5)
	want := Comparison{
		Frames:      3,
		Matched:     1,
		OnlyA:       1,
		OnlyB:       1,
		MeanIoU:     1,
		MissingInA:  1,
		MissingInB:  1,
		SameActorID: 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}
