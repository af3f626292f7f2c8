//go:build !darwin && !linux

package audio

import (
	"context"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

type unsupportedMixer struct{}

var errMixerUnsupported = apperrors.New(apperrors.CodeDuckingFailed, "input volume control not supported on this platform")

func (unsupportedMixer) InputVolume(context.Context) (int, error)  { return 0, errMixerUnsupported }
func (unsupportedMixer) SetInputVolume(context.Context, int) error { return errMixerUnsupported }
func (unsupportedMixer) MuteInput(context.Context) error           { return errMixerUnsupported }
func (unsupportedMixer) UnmuteInput(context.Context) error         { return errMixerUnsupported }

// NewMixer returns a mixer whose calls all fail; playback proceeds unducked.
func NewMixer() Mixer {
	return unsupportedMixer{}
}
