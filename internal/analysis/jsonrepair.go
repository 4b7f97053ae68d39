package analysis

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// StripCodeFences removes a surrounding ```json ... ``` block.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON decodes a model answer into v. Fences and surrounding prose are
// stripped; if the document still does not parse, one repair pass is made.
func DecodeJSON(text string, v any) error {
	opening, closing := "{[", "}]"
	if wantsObject(v) {
		opening, closing = "{", "}"
	}

	s := StripCodeFences(text)
	if start := strings.IndexAny(s, opening); start > 0 {
		s = s[start:]
	}
	if s == "" {
		return fmt.Errorf("%w: empty response", domain.ErrResponseParse)
	}

	firstErr := json.Unmarshal([]byte(s), v)
	if firstErr == nil {
		return nil
	}

	if end := strings.LastIndexAny(s, closing); end >= 0 && end < len(s)-1 {
		if json.Unmarshal([]byte(s[:end+1]), v) == nil {
			return nil
		}
	}

	if repaired, ok := RepairJSON(s); ok {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrResponseParse, firstErr)
}

// wantsObject reports whether v decodes from a JSON object, so brackets in
// surrounding prose are not mistaken for the document start.
func wantsObject(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && (t.Kind() == reflect.Struct || t.Kind() == reflect.Map)
}

// RepairJSON attempts to turn malformed model output into valid JSON. It
// re-escapes invalid backslash sequences, closes an unterminated string and
// balances braces and brackets. It reports false when no candidate is valid.
func RepairJSON(s string) (string, bool) {
	fixed := fixEscapes(s)
	if json.Valid([]byte(fixed)) {
		return fixed, true
	}

	if closed, ok := closeTruncated(fixed); ok {
		return closed, true
	}
	return "", false
}

// fixEscapes doubles backslashes that do not start a valid JSON escape.
func fixEscapes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 8)

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inString = false
			sb.WriteByte(c)
		case '\\':
			if i+1 < len(s) && isEscapeChar(s[i+1]) {
				sb.WriteByte(c)
				sb.WriteByte(s[i+1])
				i++
			} else {
				sb.WriteString(`\\`)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isEscapeChar(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

type cutPoint struct {
	pos   int
	stack []byte
}

// closeTruncated completes a document cut off mid-stream. It first closes
// everything open at the end; if that is not valid it falls back to the last
// comma outside a string and closes from there.
func closeTruncated(s string) (string, bool) {
	var stack []byte
	var cuts []cutPoint
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			cuts = append(cuts, cutPoint{pos: i, stack: append([]byte(nil), stack...)})
		}
	}

	tail := s
	if inString {
		if escaped {
			tail = tail[:len(tail)-1]
		}
		tail += `"`
	}
	if candidate := closeWith(tail, stack); json.Valid([]byte(candidate)) {
		return candidate, true
	}

	for i := len(cuts) - 1; i >= 0; i-- {
		candidate := closeWith(s[:cuts[i].pos], cuts[i].stack)
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func closeWith(s string, stack []byte) string {
	s = strings.TrimRight(s, " \t\r\n")
	switch {
	case strings.HasSuffix(s, ","):
		s = s[:len(s)-1]
	case strings.HasSuffix(s, ":"):
		s += "null"
	}

	var sb strings.Builder
	sb.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	return sb.String()
}
