package inference

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// stripFences removes a surrounding markdown code fence, which some models
// add even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// The language tag may sit on its own line or directly before the object.
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseLines decodes a JSON object and returns the string list stored under
// field. A missing or null field, a non-list value, or a non-string item is an
// invalid response. An empty list is valid.
func parseLines(raw, field string) ([]string, error) {
	body := stripFences(raw)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMInvalidResponse, "response is not a JSON object").
			WithMetadata("body", truncate(body, 200))
	}

	value, ok := obj[field]
	if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return nil, apperrors.Newf(apperrors.CodeLLMInvalidResponse, "response has no %q field", field).
			WithMetadata("body", truncate(body, 200))
	}

	var lines []string
	if err := json.Unmarshal(value, &lines); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeLLMInvalidResponse, "field %q is not a list of strings", field)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
