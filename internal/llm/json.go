package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n?(.*?)```")

// ExtractJSON recovers a JSON object from a model reply. It tries the
// whole text, then each fenced code block, then the span from the first
// '{' to the last '}'.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if isJSONObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrUnparsable
}

// DecodeJSON extracts a JSON object from text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return nil
}

func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// CoerceString renders any JSON scalar as a string. Objects are reduced to
// their "name", "label" or "title" field when present.
func CoerceString(raw json.RawMessage) string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return strconv.FormatBool(b)
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		for _, key := range []string{"name", "label", "title", "type"} {
			if v, ok := obj[key]; ok {
				if s := CoerceString(v); s != "" {
					return s
				}
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// CoerceStrings accepts either a JSON array of arbitrary values or a
// single value and returns the non-empty string forms.
func CoerceStrings(raw json.RawMessage) []string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		if s := CoerceString(raw); s != "" {
			return []string{s}
		}
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := CoerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
