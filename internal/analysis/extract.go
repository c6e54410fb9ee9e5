package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrMalformedResult = errors.New("analysis result is not valid JSON")

// completeObject scans buf for the first top-level JSON object and reports
// whether it is closed. Braces inside strings and escaped quotes are ignored.
func completeObject(buf string) (start, end int, complete bool) {
	start = strings.IndexByte(buf, '{')
	if start < 0 {
		return -1, -1, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(buf); i++ {
		ch := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return start, -1, false
}

// ExtractJSON pulls the result object out of a model reply that may wrap it
// in Markdown fences or lead with prose.
func ExtractJSON(buf string) (string, error) {
	trimmed := strings.TrimSpace(buf)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedResult)
	}
	start, end, ok := completeObject(trimmed)
	if !ok {
		return "", fmt.Errorf("%w: no complete object in %d bytes", ErrMalformedResult, len(trimmed))
	}
	obj := trimmed[start:end]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: %s", ErrMalformedResult, excerpt(obj, 120))
	}
	return obj, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
