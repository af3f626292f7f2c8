// Package screen provides platform-agnostic region capture and the region source.
package screen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// Capturer grabs one image of a screen region.
type Capturer interface {
	Capture(ctx context.Context, r Region) ([]byte, error)
	Close()
}

// backend implements the platform-specific grab into a file.
type backend interface {
	grab(ctx context.Context, r Region, path string) error
	format() string
}

// fileCapturer runs a backend against a private temp directory.
type fileCapturer struct {
	backend
	tempDir string
}

func newFileCapturer(b backend) *fileCapturer {
	tmpDir, err := os.MkdirTemp("", "narrator-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &fileCapturer{backend: b, tempDir: tmpDir}
}

func (c *fileCapturer) Capture(ctx context.Context, r Region) ([]byte, error) {
	if !r.Valid() {
		return nil, apperrors.Newf(apperrors.CodeRegionInvalid, "region %s has no area", r)
	}
	path := filepath.Join(c.tempDir, "region."+c.format())
	defer os.Remove(path)

	if err := c.grab(ctx, r, path); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeCaptureFailed, "grab %s", r)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "read capture")
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeCaptureFailed, "empty capture")
	}
	return data, nil
}

func (c *fileCapturer) Close() {
	if c.tempDir != "" && c.tempDir != os.TempDir() {
		os.RemoveAll(c.tempDir)
	}
}

// commandError folds stderr into the error returned from a capture tool.
func commandError(tool string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return fmt.Errorf("%s: %w: %s", tool, err, stderr)
}
