package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/tbxark/adagent/types"
)

var (
	ErrNotJSON     = errors.New("model output is not a JSON object")
	ErrMissingKeys = errors.New("model output is missing required keys")
	ErrNoObject    = errors.New("no brace-delimited object in model output")
)

// decodeTurn parses raw as a complete turn response. All required keys must be
// present and carry values of the right type.
func decodeTurn(raw string) (types.TurnResponse, error) {
	var resp types.TurnResponse
	var keys map[string]any
	if err := sonic.UnmarshalString(raw, &keys); err != nil {
		return resp, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if keys == nil {
		return resp, ErrNotJSON
	}
	var missing []string
	for _, key := range types.RequiredTurnKeys {
		if _, ok := keys[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return resp, fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}
	if err := sonic.UnmarshalString(raw, &resp); err != nil {
		return resp, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	resp.NextStep = resp.NextStep.Normalize()
	if strings.TrimSpace(resp.UserMessage) == "" || resp.NextStep == "" {
		return resp, fmt.Errorf("%w: empty user_message or next_step", ErrMissingKeys)
	}
	return resp, nil
}

// extractObject returns candidate JSON objects embedded in text: the first
// balanced brace-delimited substring, then the span from the first '{' to the
// last '}'.
func extractObject(text string) []string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}
	var out []string
	if balanced, ok := balancedFrom(text, start); ok {
		out = append(out, balanced)
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		greedy := text[start : end+1]
		if len(out) == 0 || out[0] != greedy {
			out = append(out, greedy)
		}
	}
	return out
}

func balancedFrom(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// repairTurn looks for a decodable turn response inside free text.
func repairTurn(raw string) (types.TurnResponse, error) {
	candidates := extractObject(raw)
	if len(candidates) == 0 {
		return types.TurnResponse{}, ErrNoObject
	}
	var lastErr error
	for _, candidate := range candidates {
		resp, err := decodeTurn(candidate)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return types.TurnResponse{}, lastErr
}
