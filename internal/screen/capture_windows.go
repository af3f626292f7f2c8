//go:build windows

package screen

import (
	"context"
	"errors"
)

type windowsBackend struct{}

// TODO: grab through GDI BitBlt once a cgo-free binding is picked.
func (windowsBackend) grab(context.Context, Region, string) error {
	return errors.New("windows region capture not implemented")
}

func (windowsBackend) format() string { return "png" }

// New creates a platform-specific region capturer
func New() Capturer {
	return newFileCapturer(windowsBackend{})
}
