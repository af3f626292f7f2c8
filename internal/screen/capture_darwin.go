//go:build darwin

package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

type darwinBackend struct{}

// grab uses screencapture: -x silences the shutter, -R limits to the region.
func (darwinBackend) grab(ctx context.Context, r Region, path string) error {
	rect := fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-R", rect, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError("screencapture", err, stderr.String())
	}
	return nil
}

func (darwinBackend) format() string { return "png" }

// New creates a platform-specific region capturer
func New() Capturer {
	return newFileCapturer(darwinBackend{})
}
