// Package format turns bot replies into display markup. The lite dialect
// understands **bold**, "- "/"• " bullets and "N. " numbered items; every other
// non-empty line is a paragraph.
package format

import (
	"regexp"
	"strings"
)

// ListKind is the list a line belongs to, if any.
type ListKind int

const (
	ListNone ListKind = iota
	ListUnordered
	ListOrdered
)

// Span is a run of text, optionally bold.
type Span struct {
	Text string
	Bold bool
}

// Line is one rendered line of inline spans.
type Line []Span

// Block is either a paragraph (List == ListNone, one line) or a contiguous list.
type Block struct {
	List  ListKind
	Lines []Line
}

var (
	numberedPrefix = regexp.MustCompile(`^\d+\.\s`)
	boldPattern    = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// Parse groups text into blocks. Blank lines and lines of a different kind
// end an open list; a list of the other kind opens a new block.
func Parse(text string) []Block {
	var (
		blocks []Block
		open   = ListNone
	)

	for _, raw := range strings.Split(text, "\n") {
		kind, content := classify(strings.TrimSpace(raw))

		if kind == ListNone {
			open = ListNone
			if content != "" {
				blocks = append(blocks, Block{List: ListNone, Lines: []Line{spans(content)}})
			}
			continue
		}

		if open != kind {
			blocks = append(blocks, Block{List: kind})
			open = kind
		}
		last := &blocks[len(blocks)-1]
		last.Lines = append(last.Lines, spans(content))
	}

	return blocks
}

func classify(trimmed string) (ListKind, string) {
	if rest, ok := strings.CutPrefix(trimmed, "- "); ok {
		return ListUnordered, rest
	}
	if rest, ok := strings.CutPrefix(trimmed, "• "); ok {
		return ListUnordered, rest
	}
	if loc := numberedPrefix.FindStringIndex(trimmed); loc != nil {
		return ListOrdered, trimmed[loc[1]:]
	}
	return ListNone, trimmed
}

func spans(s string) Line {
	var out Line
	pos := 0
	for _, m := range boldPattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > pos {
			out = append(out, Span{Text: s[pos:m[0]]})
		}
		out = append(out, Span{Text: s[m[2]:m[3]], Bold: true})
		pos = m[1]
	}
	if pos < len(s) {
		out = append(out, Span{Text: s[pos:]})
	}
	return out
}
