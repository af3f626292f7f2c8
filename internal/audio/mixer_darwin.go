//go:build darwin

package audio

// NewMixer returns the system input mixer.
func NewMixer() Mixer {
	return newOsascriptMixer(execRunner)
}
