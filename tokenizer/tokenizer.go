// Package tokenizer normalizes raw memory-file text into searchable terms.
// The same function is used at index time and at query time; the two must
// never diverge.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTermLen filters out single-character noise tokens.
const minTermLen = 2

// Token is one normalized term occurrence within a text.
type Token struct {
	Term string
	// Line is the 1-based line number the term appears on.
	Line int
	// LineOffset is the byte offset of the start of that line within the
	// text, kept so a snippet can be read back without re-scanning the file.
	LineOffset int64
}

// Tokenize splits text into normalized terms with line-level positions.
// Terms are lowercased runs of letters and digits; interior hyphens and
// underscores are kept (so "mtime-ns" and "request_id" stay whole words),
// everything else — whitespace, punctuation, markdown formatting — is a
// separator. Pure and deterministic.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/8)

	line := 0
	offset := int64(0)
	for _, lineText := range strings.SplitAfter(text, "\n") {
		line++
		for _, term := range splitLine(lineText) {
			tokens = append(tokens, Token{Term: term, Line: line, LineOffset: offset})
		}
		offset += int64(len(lineText))
	}

	return tokens
}

// Terms returns just the normalized terms of text, in order. This is the
// query-side entry point.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		terms = append(terms, token.Term)
	}
	return terms
}

func splitLine(lineText string) []string {
	words := strings.FieldsFunc(strings.ToLower(lineText), func(r rune) bool {
		return !isTermRune(r)
	})

	terms := words[:0]
	for _, word := range words {
		term := strings.Trim(word, "-_")
		if utf8.RuneCountInString(term) < minTermLen {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
