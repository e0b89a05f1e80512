//go:build !opencv
// +build !opencv

package video

import "context"

// Encode is a stub implementation when OpenCV support is disabled.
// Options are still validated so that flag errors surface first.
func Encode(ctx context.Context, frames []FrameFile, out string, opts Options) (int, error) {
	if _, err := opts.withDefaults(); err != nil {
		return 0, err
	}
	return 0, ErrOpenCVDisabled
}

// Extract is a stub implementation when OpenCV support is disabled.
func Extract(ctx context.Context, path, dir string) (int, error) {
	return 0, ErrOpenCVDisabled
}
