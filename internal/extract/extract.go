// Package extract recovers a structured JSON payload from free-form agent
// output. Upstream models wrap valid JSON in prose, code fences, or emit
// several JSON-looking fragments; extraction tries a layered set of
// strategies and returns the first one that yields an object.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrExtractionFailed is returned when no strategy recovers a JSON object.
var ErrExtractionFailed = errors.New("no JSON object could be extracted")

// EventsKey is the conventional top-level key for extracted funding events.
// A bare top-level array is reinterpreted as the value of this key.
const EventsKey = "events"

var (
	fencedJSONRe = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// Extract parses arbitrary agent output text into a JSON object.
//
// Strategies are attempted in order, first success wins:
//  1. the entire trimmed text as JSON
//  2. fenced code blocks (```json first, then any fence) in document order
//  3. balanced-brace spans around each occurrence of the "events" key
//  4. the span from the first '{' to the last '}'
//
// A top-level array is wrapped as {"events": [...]}; a top-level object is
// returned as-is; any other JSON value is rejected.
func Extract(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrExtractionFailed)
	}

	// 1. Direct parse.
	if obj, ok := tryParse(text); ok {
		return obj, nil
	}

	// 2. Fenced blocks, language-tagged fences first.
	for _, re := range []*regexp.Regexp{fencedJSONRe, fencedAnyRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if obj, ok := tryParse(strings.TrimSpace(m[1])); ok {
				return obj, nil
			}
		}
	}

	// 3. Balanced-brace spans around each "events" key occurrence.
	needle := `"` + EventsKey + `"`
	for from := 0; ; {
		idx := strings.Index(text[from:], needle)
		if idx == -1 {
			break
		}
		idx += from
		open := strings.LastIndexByte(text[:idx], '{')
		if open != -1 {
			if span, ok := balancedSpan(text, open); ok {
				if obj, ok := tryParse(span); ok {
					return obj, nil
				}
			}
		}
		from = idx + len(needle)
	}

	// 4. Greedy braces: first '{' to last '}'.
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start != -1 && end > start {
		if obj, ok := tryParse(text[start : end+1]); ok {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("%w: tried direct, fenced, keyed, and greedy strategies", ErrExtractionFailed)
}

// tryParse parses candidate text as JSON and normalizes the result to an
// object. A top-level array becomes the value of the events key.
func tryParse(candidate string) (map[string]any, bool) {
	if candidate == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, false
	}
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case []any:
		return map[string]any{EventsKey: val}, true
	default:
		// Scalars and null carry no usable structure.
		return nil, false
	}
}

// balancedSpan returns the substring from the opening brace at start to its
// matching closing brace. Braces inside JSON strings do not count.
func balancedSpan(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
