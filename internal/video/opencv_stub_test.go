//go:build !opencv
// +build !opencv

package video

import (
	"context"
	"errors"
	"testing"
)

func TestStub_ReturnsDisabled(t *testing.T) {
	ctx := context.Background()
	if _, err := Encode(ctx, []FrameFile{{Number: 0, Path: "x.png"}}, "out.mp4", Options{}); !errors.Is(err, ErrOpenCVDisabled) {
		t.Errorf("Encode() error = %v, want ErrOpenCVDisabled", err)
	}
	if _, err := Extract(ctx, "in.mp4", t.TempDir()); !errors.Is(err, ErrOpenCVDisabled) {
		t.Errorf("Extract() error = %v, want ErrOpenCVDisabled", err)
	}
}
