package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// maxPasses bounds the fixpoint loop in Normalize. Two passes settle every
// input seen in practice; the third covers a word collapse that leaves a bare
// section label behind.
const maxPasses = 8

type step func(string) string

// pipeline is the ordered list of cleanup steps; each feeds the next.
var pipeline = []step{
	unescape,
	collapseWhitespace,
	localizeHeadings,
	collapseRepeatedWords,
	collapseLines,
	strings.TrimSpace,
}

// Normalize cleans a raw answer or result text into display-ready Markdown.
// It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	out := raw
	for i := 0; i < maxPasses; i++ {
		next := runPipeline(out)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

// NormalizeOptional normalizes an optional string; nil yields "".
func NormalizeOptional(raw *string) string {
	if raw == nil {
		return ""
	}
	return Normalize(*raw)
}

func runPipeline(s string) string {
	for _, st := range pipeline {
		s = st(s)
	}
	return s
}

// unescape turns literal "\n" sequences into newlines and drops carriage returns.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, `\n`, "\n")
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return multiSpace.ReplaceAllString(s, " ")
}

func localizeHeadings(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if heading, ok := matchHeading(line); ok {
			lines[i] = heading + "\n\n"
		}
	}
	return strings.Join(lines, "\n")
}

// matchHeading reports whether the line is a section label, optionally
// followed by a colon or dash, and returns the localized heading.
func matchHeading(line string) (string, bool) {
	body := strings.TrimLeftFunc(line, unicode.IsSpace)
	label := headingPattern.FindString(body)
	if label == "" {
		return "", false
	}

	rest := strings.TrimLeftFunc(body[len(label):], unicode.IsSpace)
	if rest != "" && !strings.ContainsRune(headingSeparators, rune(rest[0])) {
		return "", false
	}

	if heading, ok := headingTable[foldKey(label)]; ok {
		return heading, true
	}
	return label, true
}

func collapseRepeatedWords(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseLineWords(line)
	}
	return strings.Join(lines, "\n")
}

type token struct {
	text string
	word bool
}

// collapseLineWords drops every word that repeats the previous word with
// only whitespace between them. The first occurrence keeps its casing.
func collapseLineWords(line string) string {
	tokens := tokenize(line)
	kept := make([]token, 0, len(tokens))

	for _, t := range tokens {
		if t.word && len(kept) >= 2 {
			sep, prev := kept[len(kept)-1], kept[len(kept)-2]
			if !sep.word && prev.word && isBlank(sep.text) && strings.EqualFold(prev.text, t.text) {
				kept = kept[:len(kept)-1]
				continue
			}
		}
		kept = append(kept, t)
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, t := range kept {
		b.WriteString(t.text)
	}
	return b.String()
}

// tokenize splits a line into alternating runs of word and non-word runes.
func tokenize(line string) []token {
	var tokens []token
	start := 0
	inWord := false

	for i, r := range line {
		w := isWordRune(r)
		if i > start && w != inWord {
			tokens = append(tokens, token{text: line[start:i], word: inWord})
			start = i
		}
		inWord = w
	}
	if start < len(line) {
		tokens = append(tokens, token{text: line[start:], word: inWord})
	}
	return tokens
}

func isWordRune(r rune) bool {
	return !unicode.IsSpace(r) && !strings.ContainsRune(wordDelimiters, r)
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// collapseLines trims every line, drops blank lines that follow a blank
// line, and drops lines equal to the line kept before them.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if n := len(kept); n > 0 {
			prev := kept[n-1]
			if line == "" && prev == "" {
				continue
			}
			if line != "" && line == prev {
				continue
			}
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func foldKey(s string) string {
	return cases.Fold().String(s)
}
