package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/resilience"
)

// ElevenLabs streams raw PCM from the text-to-speech stream endpoint.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	model      string
	sampleRate int
	client     *http.Client
	retry      resilience.RetryConfig
}

// NewElevenLabs creates a speech client producing PCM at sampleRate.
func NewElevenLabs(apiKey, baseURL, model string, sampleRate int) *ElevenLabs {
	return &ElevenLabs{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		sampleRate: sampleRate,
		client:     newHTTPClient(),
		retry:      resilience.StreamRetryConfig(),
	}
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Stream opens a synthesis stream. Setup is retried on rate limits and server
// errors; once the body starts flowing it is handed to the caller as-is.
func (e *ElevenLabs) Stream(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	payload, err := json.Marshal(ttsRequest{Text: text, ModelID: e.model})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "encode tts request")
	}

	q := url.Values{}
	q.Set("output_format", "pcm_"+strconv.Itoa(e.sampleRate))
	q.Set("optimize_streaming_latency", strconv.Itoa(StreamLatency))
	endpoint := e.baseURL + "/text-to-speech/" + url.PathEscape(voice) + "/stream?" + q.Encode()

	var body io.ReadCloser
	err = resilience.Retry(ctx, e.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "build tts request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/pcm")
		req.Header.Set("xi-api-key", e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return transportError(err, "tts")
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return statusError(resp, "tts")
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			return nil, apperrors.FromContext(err, "tts")
		}
		return nil, err
	}
	return body, nil
}
