// Package inference provides clients for the remote vision, language, and
// speech services.
package inference

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/GriffinCanCode/screen-narrator/internal/config"
	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/resilience"
)

// VisionClient reads new text out of a screenshot.
type VisionClient interface {
	// ExtractText returns the lines visible in image that are not already in recent.
	ExtractText(ctx context.Context, image []byte, mimeType string, recent []string) ([]string, error)
}

// Summarizer turns captured text into new first-person dialog lines.
type Summarizer interface {
	Summarize(ctx context.Context, captured string, previous []string) ([]string, error)
}

// Synthesizer streams speech audio for a line of text.
type Synthesizer interface {
	// Stream returns 16-bit little-endian mono PCM. The caller closes it.
	Stream(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// Client wraps all remote service clients, each behind its own circuit breaker.
type Client struct {
	Vision     VisionClient
	Summarizer Summarizer
	Speech     Synthesizer // nil when speech is disabled

	breakers []*resilience.Breaker
}

// New builds the clients selected by cfg.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	var (
		vision     VisionClient
		summarizer Summarizer
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		vision, summarizer = g, g
	case config.ProviderOpenAI:
		o := NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.VisionModel, cfg.SummaryModel)
		vision, summarizer = o, o
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown inference provider %q", cfg.Provider)
	}

	c := &Client{}
	ocrBreaker := c.breaker("ocr")
	summaryBreaker := c.breaker("summary")
	c.Vision = &guardedVision{inner: vision, breaker: ocrBreaker}
	c.Summarizer = &guardedSummarizer{inner: summarizer, breaker: summaryBreaker}

	if cfg.SpeechEnabled {
		tts := NewElevenLabs(cfg.ElevenLabsKey, cfg.ElevenLabsBaseURL, cfg.TTSModel, cfg.TTSSampleRate)
		c.Speech = &guardedSynthesizer{inner: tts, breaker: c.breaker("tts")}
	}
	return c, nil
}

// Breakers returns the breakers guarding each remote service.
func (c *Client) Breakers() []*resilience.Breaker { return c.breakers }

func (c *Client) breaker(name string) *resilience.Breaker {
	b := resilience.New(name, resilience.FastConfig())
	c.breakers = append(c.breakers, b)
	return b
}

type guardedVision struct {
	inner   VisionClient
	breaker *resilience.Breaker
}

func (g *guardedVision) ExtractText(ctx context.Context, image []byte, mimeType string, recent []string) ([]string, error) {
	return resilience.ExecuteWithResult(g.breaker, func() ([]string, error) {
		return g.inner.ExtractText(ctx, image, mimeType, recent)
	})
}

type guardedSummarizer struct {
	inner   Summarizer
	breaker *resilience.Breaker
}

func (g *guardedSummarizer) Summarize(ctx context.Context, captured string, previous []string) ([]string, error) {
	return resilience.ExecuteWithResult(g.breaker, func() ([]string, error) {
		return g.inner.Summarize(ctx, captured, previous)
	})
}

type guardedSynthesizer struct {
	inner   Synthesizer
	breaker *resilience.Breaker
}

func (g *guardedSynthesizer) Stream(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (io.ReadCloser, error) {
		return g.inner.Stream(ctx, text, voice)
	})
}

// newHTTPClient returns a client without an overall timeout so streamed bodies
// are bounded only by the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
			TLSHandshakeTimeout: dialTimeout,
			MaxIdleConnsPerHost: 4,
		},
	}
}

// transportError classifies a failed round trip.
func transportError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.FromContext(err, op)
	}
	return apperrors.Wrapf(err, apperrors.CodeUnavailable, "%s request failed", op)
}

// statusError reads a bounded error body and classifies the status.
func statusError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apperrors.FromHTTPStatus(resp.StatusCode, string(body)).WithMetadata("op", op)
}
