// Package search expands product queries into fallback phrases and ranks
// marketplace search hits against the requested product name.
package search

import (
	"unicode"
	"unicode/utf8"
)

// PartialNames returns every token prefix of name that has at least two
// tokens, longest first. Each phrase is a slice of the input, so spacing
// between tokens is kept as typed. Blank or single-token input yields nil.
func PartialNames(name string) []string {
	start := -1
	var ends []int

	inToken := false
	for i, r := range name {
		if unicode.IsSpace(r) {
			if inToken {
				ends = append(ends, i)
				inToken = false
			}
			continue
		}
		if start < 0 {
			start = i
		}
		inToken = true
	}
	if inToken {
		ends = append(ends, len(name))
	}

	if len(ends) < 2 {
		return nil
	}

	phrases := make([]string, 0, len(ends)-1)
	for i := len(ends) - 1; i >= 1; i-- {
		phrases = append(phrases, name[start:ends[i]])
	}
	return phrases
}

// TokenCount reports how many whitespace-separated tokens s has
func TokenCount(s string) int {
	n := 0
	inToken := false
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			n++
			inToken = true
		}
	}
	return n
}
