// Package mention extracts @name addressing tokens from chat text.
//
// A token is '@' followed by a letter and then any run of letters, digits or
// underscores. Malformed forms such as "@123x", "@@x" or "@_x" are skipped
// rather than partially matched. Matching a token against a roster is left to
// callers; Equal provides the case-insensitive comparison they should use.
package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse returns the names (without '@') of all valid mentions in text, in
// order of appearance. Repeated mentions are kept.
func Parse(text string) []string {
	var names []string
	scan(text, func(name string) bool {
		names = append(names, name)
		return true
	})
	return names
}

// First returns the first valid mention in text.
func First(text string) (string, bool) {
	var first string
	found := false
	scan(text, func(name string) bool {
		first, found = name, true
		return false
	})
	return first, found
}

// Equal reports whether a mention token addresses name.
func Equal(token, name string) bool {
	return token != "" && strings.EqualFold(strings.TrimPrefix(token, "@"), name)
}

// scan walks text and calls yield for every valid mention until yield
// returns false.
func scan(text string, yield func(name string) bool) {
	prev := rune(0)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '@' || prev == '@' {
			prev = r
			i += size
			continue
		}

		start := i + size
		next, nextSize := utf8.DecodeRuneInString(text[start:])
		if start >= len(text) || !unicode.IsLetter(next) {
			prev = r
			i += size
			continue
		}

		end := start + nextSize
		for end < len(text) {
			c, cs := utf8.DecodeRuneInString(text[end:])
			if !isNameRune(c) {
				break
			}
			end += cs
		}

		if !yield(text[start:end]) {
			return
		}

		prev, _ = utf8.DecodeLastRuneInString(text[start:end])
		i = end
	}
}

func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
