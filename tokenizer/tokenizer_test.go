package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var tokenizeTestCases = []struct {
	name     string
	input    string
	expected []Token
}{
	{
		name:  "SimpleLine",
		input: "rotate the moltbook credentials",
		expected: []Token{
			{Term: "rotate", Line: 1},
			{Term: "the", Line: 1},
			{Term: "moltbook", Line: 1},
			{Term: "credentials", Line: 1},
		},
	},
	{
		name:  "LowercasesAndStripsPunctuation",
		input: "Decided: use BBolt!",
		expected: []Token{
			{Term: "decided", Line: 1},
			{Term: "use", Line: 1},
			{Term: "bbolt", Line: 1},
		},
	},
	{
		name:  "MarkdownFormattingIsSeparator",
		input: "## **Lessons** `learned` [today](link)",
		expected: []Token{
			{Term: "lessons", Line: 1},
			{Term: "learned", Line: 1},
			{Term: "today", Line: 1},
			{Term: "link", Line: 1},
		},
	},
	{
		name:  "KeepsInteriorHyphensAndUnderscores",
		input: "check mtime-ns and request_id",
		expected: []Token{
			{Term: "check", Line: 1},
			{Term: "mtime-ns", Line: 1},
			{Term: "and", Line: 1},
			{Term: "request_id", Line: 1},
		},
	},
	{
		name:  "TrimsLeadingAndTrailingHyphens",
		input: "--flag- _x_ -",
		expected: []Token{
			{Term: "flag", Line: 1},
		},
	},
	{
		name:     "DropsShortTerms",
		input:    "a b c 1 x2",
		expected: []Token{{Term: "x2", Line: 1}},
	},
	{
		name:     "EmptyInput",
		input:    "",
		expected: []Token{},
	},
	{
		name:  "MultiLineWithOffsets",
		input: "first line\nsecond here\n\nfourth",
		expected: []Token{
			{Term: "first", Line: 1, LineOffset: 0},
			{Term: "line", Line: 1, LineOffset: 0},
			{Term: "second", Line: 2, LineOffset: 11},
			{Term: "here", Line: 2, LineOffset: 11},
			{Term: "fourth", Line: 4, LineOffset: 24},
		},
	},
}

func TestTokenize(t *testing.T) {
	for _, testCase := range tokenizeTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)

			got := Tokenize(testCase.input)
			assert.Len(got, len(testCase.expected))
			for i, expected := range testCase.expected {
				assert.Equal(expected.Term, got[i].Term)
				assert.Equal(expected.Line, got[i].Line)
				if testCase.name == "MultiLineWithOffsets" {
					assert.Equal(expected.LineOffset, got[i].LineOffset)
				}
			}
		})
	}
}

func TestTokenizeIsDeterministic(t *testing.T) {
	assert := require.New(t)

	input := "Rotate the MOLTBOOK credentials\nbefore 2024-06-01, please."
	first := Tokenize(input)
	second := Tokenize(input)
	assert.Equal(first, second)
}

// Document-side and query-side tokenization must produce the same terms,
// otherwise an indexed term could never be matched by a query.
func TestTokenizeQuerySymmetry(t *testing.T) {
	assert := require.New(t)

	document := "Rotate the moltbook credentials\nAPI key expires 2024-06-01"
	docTerms := map[string]struct{}{}
	for _, token := range Tokenize(document) {
		docTerms[token.Term] = struct{}{}
	}

	for _, queryTerm := range Terms("MOLTBOOK Credentials 2024-06-01") {
		_, found := docTerms[queryTerm]
		assert.True(found, "query term %q should match an indexed term", queryTerm)
	}
}
