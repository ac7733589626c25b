// Package jsonscan extracts JSON payloads from free-form text. Language
// models do not reliably emit pure JSON, so callers scan their output for
// the first balanced top-level object instead of decoding it whole.
package jsonscan

import "errors"

// ErrNoObject is returned when the input contains no balanced top-level
// JSON object.
var ErrNoObject = errors.New("no JSON object found")

// FirstObject returns the first balanced {...} span in s. Braces inside
// string literals do not count toward nesting; escape sequences inside
// strings are honored. An opening brace that never closes is treated the
// same as no object at all.
func FirstObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

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
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", ErrNoObject
}
