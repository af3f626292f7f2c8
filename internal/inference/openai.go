package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// OpenAI calls the chat completions endpoint for both vision extraction and
// summarization.
type OpenAI struct {
	client       openai.Client
	visionModel  string
	summaryModel string
}

// NewOpenAI creates an OpenAI-compatible client. The SDK's own retries are
// off; failures are counted by the caller's breaker instead.
func NewOpenAI(apiKey, baseURL, visionModel, summaryModel string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			option.WithHTTPClient(newHTTPClient()),
			option.WithMaxRetries(0),
		),
		visionModel:  visionModel,
		summaryModel: summaryModel,
	}
}

// ExtractText sends the screenshot with the recent-text prompt.
func (c *OpenAI) ExtractText(ctx context.Context, image []byte, mimeType string, recent []string) ([]string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	msg := openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(renderVisionPrompt(recent)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL, Detail: "high"}),
	})

	content, err := c.complete(ctx, c.visionModel, msg, "ocr")
	if err != nil {
		return nil, err
	}
	return parseLines(content, FieldText)
}

// Summarize asks for new dialog lines given the captured text and prior dialog.
func (c *OpenAI) Summarize(ctx context.Context, captured string, previous []string) ([]string, error) {
	msg := openai.UserMessage(renderSummaryPrompt(captured, previous))

	content, err := c.complete(ctx, c.summaryModel, msg, "summary")
	if err != nil {
		return nil, err
	}
	return parseLines(content, FieldDialog)
}

func (c *OpenAI) complete(ctx context.Context, model string, msg openai.ChatCompletionMessageParamUnion, op string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(MaxOutputTokens),
	})
	if err != nil {
		return "", openAIError(ctx, err, op)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.CodeLLMInvalidResponse, "chat response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// openAIError classifies SDK errors by status, falling back to transport rules.
func openAIError(ctx context.Context, err error, op string) error {
	if ctx.Err() != nil {
		return apperrors.FromContext(ctx.Err(), op)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperrors.FromHTTPStatus(apiErr.StatusCode, apiErr.Message).WithMetadata("op", op)
	}
	return transportError(err, op)
}
