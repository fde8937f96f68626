package ranking

import (
	"regexp"
	"strings"
	"unicode"
)

// termPattern matches runs of two or more word characters in any script, combining marks included.
var termPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

func tokenizeTerms(s string) []string {
	if s == "" {
		return nil
	}
	return termPattern.FindAllString(strings.ToLower(s), -1)
}

// queryWords splits on whitespace, trims punctuation from word edges and lowercases.
func queryWords(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if word == "" {
			continue
		}
		out = append(out, strings.ToLower(word))
	}
	return out
}
