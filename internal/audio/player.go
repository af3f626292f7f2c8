// Package audio handles speech output and the microphone volume control surface.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// DefaultFramesPerBuffer is ~46ms at 22050Hz, small enough to start quickly.
const DefaultFramesPerBuffer = 1024

// Player writes 16-bit little-endian mono PCM to the default output device.
type Player struct {
	sampleRate   int
	framesPerBuf int
	mu           sync.Mutex
	closed       bool
}

// NewPlayer initializes portaudio for output at sampleRate.
func NewPlayer(sampleRate int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePlaybackFailed, "initialize portaudio")
	}
	return &Player{sampleRate: sampleRate, framesPerBuf: DefaultFramesPerBuffer}, nil
}

// SampleRate returns the output sample rate.
func (p *Player) SampleRate() int { return p.sampleRate }

// Play streams pcm to the speakers until EOF, an error, or ctx cancellation.
// Audio starts as soon as the first buffer arrives.
func (p *Player) Play(ctx context.Context, pcm io.Reader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperrors.New(apperrors.CodePlaybackFailed, "player closed")
	}

	out := make([]int16, p.framesPerBuf)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(p.sampleRate), len(out), out)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePlaybackFailed, "open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.CodePlaybackFailed, "start output stream")
	}
	defer stream.Stop()

	raw := make([]byte, len(out)*2)
	for {
		if err := ctx.Err(); err != nil {
			return apperrors.FromContext(err, "playback")
		}

		n, readErr := io.ReadFull(pcm, raw)
		if n > 0 {
			decodePCM16(raw[:n], out)
			if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
				return apperrors.Wrap(err, apperrors.CodePlaybackFailed, "write output stream")
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return nil
		default:
			if ctx.Err() != nil {
				return apperrors.FromContext(ctx.Err(), "playback")
			}
			return apperrors.Wrap(readErr, apperrors.CodePlaybackFailed, "read audio stream")
		}
	}
}

// Close releases portaudio. Play fails afterwards.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

// decodePCM16 fills out from little-endian sample pairs in raw and zero-pads the
// rest so a short final read does not replay stale samples. A trailing odd byte
// is dropped. Returns the number of samples decoded.
func decodePCM16(raw []byte, out []int16) int {
	n := min(len(raw)/2, len(out))
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	clear(out[n:])
	return n
}
