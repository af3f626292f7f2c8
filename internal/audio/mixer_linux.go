//go:build linux

package audio

// NewMixer returns the system input mixer.
func NewMixer() Mixer {
	return newPactlMixer(execRunner)
}
