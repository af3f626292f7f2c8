package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{`{"text":[]}`, `{"text":[]}`},
		{"```json\n{\"text\":[]}\n```", `{"text":[]}`},
		{"```\n{\"a\":1}\n```  ", `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json {\"text\": [\"hello\"]}```", `{"text": ["hello"]}`},
		{"```JSON{\"a\":1}```", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripFences(tt.in), "stripFences(%q)", tt.in)
	}
}

func TestParseLines(t *testing.T) {
	lines, err := parseLines(`{"text": ["hello", "world"]}`, FieldText)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, lines)

	lines, err = parseLines("```json {\"text\": [\"hello\"]}```", FieldText)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, lines)

	lines, err = parseLines("```json\n{\"dialog\": []}\n```", FieldDialog)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestParseLinesInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `the screen shows a terminal`},
		{"truncated", `{"text": ["a"`},
		{"missing field", `{"dialog": ["a"]}`},
		{"null field", `{"text": null}`},
		{"wrong type", `{"text": "a single string"}`},
		{"non-string item", `{"text": [1, 2]}`},
		{"top-level list", `["a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLines(tt.raw, FieldText)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMInvalidResponse), "got %v", err)
		})
	}
}

func TestRenderPrompts(t *testing.T) {
	p := renderVisionPrompt([]string{"alice: hi", "bob: hey"})
	assert.Contains(t, p, "alice: hi\nbob: hey")
	assert.NotContains(t, p, "{{RECENT_TEXT}}")

	p = renderSummaryPrompt("build failed", []string{"I'm running the tests."})
	assert.Contains(t, p, "build failed")
	assert.Contains(t, p, "I'm running the tests.")
	assert.NotContains(t, p, "{{")
}
