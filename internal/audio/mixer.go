package audio

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// Mixer controls the default microphone input. Volumes are percentages 0-100.
type Mixer interface {
	InputVolume(ctx context.Context) (int, error)
	SetInputVolume(ctx context.Context, level int) error
	MuteInput(ctx context.Context) error
	UnmuteInput(ctx context.Context) error
}

// commandRunner runs an external program and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeDuckingFailed, "%s: %s", name, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// scriptMixer drives a platform mixer through its command-line tool.
type scriptMixer struct {
	run    commandRunner
	get    []string
	parse  func(string) (int, error)
	set    func(level int) []string
	mute   []string // nil when muting is done by zeroing the volume
	unmute []string
}

func (m *scriptMixer) InputVolume(ctx context.Context) (int, error) {
	out, err := m.run(ctx, m.get[0], m.get[1:]...)
	if err != nil {
		return 0, err
	}
	return m.parse(out)
}

func (m *scriptMixer) SetInputVolume(ctx context.Context, level int) error {
	args := m.set(clampVolume(level))
	_, err := m.run(ctx, args[0], args[1:]...)
	return err
}

func (m *scriptMixer) MuteInput(ctx context.Context) error {
	if m.mute == nil {
		return m.SetInputVolume(ctx, 0)
	}
	_, err := m.run(ctx, m.mute[0], m.mute[1:]...)
	return err
}

func (m *scriptMixer) UnmuteInput(ctx context.Context) error {
	if m.unmute == nil {
		return nil
	}
	_, err := m.run(ctx, m.unmute[0], m.unmute[1:]...)
	return err
}

// newOsascriptMixer controls the macOS input volume through AppleScript.
// macOS has no separate input mute, so muting zeroes the volume.
func newOsascriptMixer(run commandRunner) *scriptMixer {
	return &scriptMixer{
		run:   run,
		get:   []string{"osascript", "-e", "input volume of (get volume settings)"},
		parse: parseOsascriptVolume,
		set: func(level int) []string {
			return []string{"osascript", "-e", "set volume input volume " + strconv.Itoa(level)}
		},
	}
}

// newPactlMixer controls the PulseAudio/PipeWire default source.
func newPactlMixer(run commandRunner) *scriptMixer {
	return &scriptMixer{
		run:   run,
		get:   []string{"pactl", "get-source-volume", "@DEFAULT_SOURCE@"},
		parse: parsePactlVolume,
		set: func(level int) []string {
			return []string{"pactl", "set-source-volume", "@DEFAULT_SOURCE@", strconv.Itoa(level) + "%"}
		},
		mute:   []string{"pactl", "set-source-mute", "@DEFAULT_SOURCE@", "1"},
		unmute: []string{"pactl", "set-source-mute", "@DEFAULT_SOURCE@", "0"},
	}
}

func parseOsascriptVolume(out string) (int, error) {
	s := strings.TrimSpace(out)
	if s == "missing value" {
		return 0, apperrors.New(apperrors.CodeDuckingFailed, "no input device")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeDuckingFailed, "parse input volume %q", s)
	}
	return clampVolume(v), nil
}

var pactlPercent = regexp.MustCompile(`(\d+)%`)

// parsePactlVolume reads the first channel percentage from
// "Volume: front-left: 65536 / 100% / 0.00 dB, ...".
func parsePactlVolume(out string) (int, error) {
	m := pactlPercent.FindStringSubmatch(out)
	if m == nil {
		return 0, apperrors.Newf(apperrors.CodeDuckingFailed, "no volume in %q", strings.TrimSpace(out))
	}
	v, _ := strconv.Atoi(m[1])
	return clampVolume(v), nil
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}
