// Package textutil implements keyword parsing and matching. A keyword like
// `"Novo Nordisk" Wegovy` carries one quoted phrase and one bare term; a text
// matches the keyword only when every term of every phrase appears in it,
// case-insensitively and on word boundaries, in any order.
package textutil

import (
	"strings"
	"unicode"
)

// ParseKeyword splits keyword text into its individual terms. Quoted phrases
// are unwrapped and split; each resulting term must match independently.
func ParseKeyword(text string) []string {
	var terms []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == '"' || r == '“' || r == '”':
			// Quotes group words visually but matching is per term either
			// way, so they only act as separators here.
			inQuote = !inQuote
			flush()
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return terms
}

// KeywordMatches reports whether text satisfies the keyword: every parsed
// term present as a whole word, any order. An empty keyword never matches.
func KeywordMatches(text, keyword string) bool {
	terms := ParseKeyword(keyword)
	if len(terms) == 0 {
		return false
	}
	words := wordSet(text)
	for _, term := range terms {
		if !words[foldWord(term)] {
			return false
		}
	}
	return true
}

// wordSet tokenizes text into a lowercase set of words. Tokens are runs of
// letters, digits, and in-word connectors (- ' .), so "U.S." and "GLP-1"
// survive as single words.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			set[foldWord(current.String())] = true
			current.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' || r == '.' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

func foldWord(w string) string {
	return strings.ToLower(strings.Trim(w, "-'."))
}

// CleanQuery collapses whitespace and drops quote characters, producing the
// plain form providers that do their own tokenization expect.
func CleanQuery(q string) string {
	q = strings.NewReplacer("\"", " ", "“", " ", "”", " ").Replace(q)
	return strings.Join(strings.Fields(q), " ")
}
