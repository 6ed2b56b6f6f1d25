package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes one layer of markdown code fences. Models frequently
// wrap JSON in ```json ... ``` even when asked not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeJSON parses model output into v. It tries the raw text first, then
// once more after stripping fences. Anything still unparseable is
// ErrMalformed; the raw text is preserved in the error for the audit trail.
func DecodeJSON(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrEmpty
	}
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	stripped := StripFences(trimmed)
	if err := json.Unmarshal([]byte(stripped), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// StringList coerces a loosely-typed JSON array into strings, skipping
// non-string items. Models sometimes mix objects into attribute lists.
func StringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Number coerces a loosely-typed JSON value into a float64, falling back to
// def for anything that is not a number.
func Number(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Text coerces a loosely-typed JSON value into a string, falling back to def.
func Text(v any, def string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
