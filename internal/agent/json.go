package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON finds the first balanced JSON object in text, skipping any
// markdown fences or prose around it. Returns "" when no object is found.
func ExtractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return ""
}

// Decode extracts the JSON object from an agent's text output and
// unmarshals it into v. Malformed but salvageable JSON (trailing commas,
// unquoted keys, truncation) goes through a repair pass before giving up.
// Failures come back as KindParseError.
func Decode(role Role, text string, v interface{}) error {
	jsonStr := ExtractJSON(text)
	if jsonStr == "" {
		// Truncated output may still repair into something parseable.
		if start := strings.Index(text, "{"); start != -1 {
			jsonStr = text[start:]
		} else {
			return &Error{
				Kind: KindParseError,
				Role: role,
				Err:  fmt.Errorf("no JSON object in output (%d chars)", len(text)),
			}
		}
	}

	if err := json.Unmarshal([]byte(jsonStr), v); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
	if repairErr != nil {
		return &Error{
			Kind: KindParseError,
			Role: role,
			Err:  fmt.Errorf("repair failed: %w", repairErr),
		}
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &Error{
			Kind: KindParseError,
			Role: role,
			Err:  fmt.Errorf("unmarshal after repair: %w", err),
		}
	}
	return nil
}
