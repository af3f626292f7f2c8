//go:build linux

package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

type linuxBackend struct{}

// grab prefers grim on Wayland, then scrot, then ImageMagick import.
func (linuxBackend) grab(ctx context.Context, r Region, path string) error {
	name, args, err := linuxCommand(r, path)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError(name, err, stderr.String())
	}
	return nil
}

func linuxCommand(r Region, path string) (string, []string, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" && hasTool("grim") {
		return "grim", []string{"-g", fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height), path}, nil
	}
	if hasTool("scrot") {
		return "scrot", []string{"-o", "-a", fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height), path}, nil
	}
	if hasTool("import") {
		return "import", []string{"-window", "root", "-crop", fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y), path}, nil
	}
	return "", nil, errors.New("no screenshot tool found (install grim, scrot, or imagemagick)")
}

func hasTool(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (linuxBackend) format() string { return "png" }

// New creates a platform-specific region capturer
func New() Capturer {
	return newFileCapturer(linuxBackend{})
}
