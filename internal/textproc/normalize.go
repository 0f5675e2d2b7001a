// Package textproc provides the text normalization passes applied to
// extracted PDF content before chunking and embedding.
package textproc

import (
	"regexp"
	"strings"
)

var (
	// Runs of 2+ repeated punctuation (dot leaders, rules, underscores).
	repeatedPunct = regexp.MustCompile(`[.\-_]{2,}`)

	// Everything outside word characters, standard punctuation and whitespace.
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9\s,.!?'"()%-]`)

	// Runs of 2+ whitespace characters.
	multiSpace = regexp.MustCompile(`\s{2,}`)

	// A single newline that is not part of a paragraph break.
	loneNewline = regexp.MustCompile(`([^\n])\n([^\n])`)

	// 3+ consecutive newlines.
	multiNewline = regexp.MustCompile(`\n{3,}`)

	// A word broken across a line wrap: "word-\n" or "word- ".
	hyphenBreak = regexp.MustCompile(`(\w)-[\n ]+`)
)

// Clean removes dot-leader style punctuation runs, strips characters outside
// the permitted set and collapses whitespace runs to a single space.
// Idempotent: Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	s = repeatedPunct.ReplaceAllString(s, "")
	s = disallowed.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// JoinLines rewrites wrapped lines into flowing text: single newlines inside a
// paragraph become spaces, 3+ newlines collapse to a paragraph break, and
// hyphen-split words are rejoined.
func JoinLines(s string) string {
	// Two passes because overlapping matches ("a\nb\nc") leave every other
	// newline untouched on the first pass.
	s = loneNewline.ReplaceAllString(s, "$1 $2")
	s = loneNewline.ReplaceAllString(s, "$1 $2")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	s = hyphenBreak.ReplaceAllString(s, "$1")
	return s
}
