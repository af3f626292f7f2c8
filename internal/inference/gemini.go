package inference

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// Gemini serves both vision extraction and summarization from one model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "create gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

// ExtractText sends the screenshot as an inline image part.
func (g *Gemini) ExtractText(ctx context.Context, image []byte, mimeType string, recent []string) ([]string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(renderVisionPrompt(recent)),
		genai.NewPartFromBytes(image, mimeType),
	}
	text, err := g.generate(ctx, parts, "ocr")
	if err != nil {
		return nil, err
	}
	return parseLines(text, FieldText)
}

// Summarize asks for new dialog lines given the captured text and prior dialog.
func (g *Gemini) Summarize(ctx context.Context, captured string, previous []string) ([]string, error) {
	parts := []*genai.Part{genai.NewPartFromText(renderSummaryPrompt(captured, previous))}
	text, err := g.generate(ctx, parts, "summary")
	if err != nil {
		return nil, err
	}
	return parseLines(text, FieldDialog)
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part, op string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](Temperature),
		MaxOutputTokens:  MaxOutputTokens,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", geminiError(err, op)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
		return text.String(), nil
	}
	return "", apperrors.New(apperrors.CodeLLMInvalidResponse, "empty response from gemini")
}

// geminiError classifies SDK errors, which carry the status only in their text.
func geminiError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.FromContext(err, op)
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return apperrors.Wrapf(err, apperrors.CodeLLMRateLimited, "%s rate limited", op)
	}
	return apperrors.Wrapf(err, apperrors.CodeUnavailable, "%s generate content", op)
}
