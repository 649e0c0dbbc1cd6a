package format

import (
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Mode selects the bot reply dialect.
type Mode string

const (
	ModeLite Mode = "lite"
	ModeFull Mode = "full"
)

// ParseMode maps a config value onto a Mode, defaulting to lite.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeFull)) {
		return ModeFull
	}
	return ModeLite
}

// Escape makes s safe to place inside HTML text or attribute values.
func Escape(s string) string {
	return html.EscapeString(s)
}

// UserHTML renders user text verbatim inside a paragraph.
func UserHTML(text string) string {
	return "<p>" + Escape(text) + "</p>"
}

// BotHTML renders a bot reply in the given dialect.
func BotHTML(text string, mode Mode) string {
	if mode == ModeFull {
		return FullHTML(text)
	}
	return LiteHTML(text)
}

// LiteHTML renders the lite dialect. Lists are closed with the tag that
// opened them.
func LiteHTML(text string) string {
	var b strings.Builder
	for _, blk := range Parse(text) {
		switch blk.List {
		case ListNone:
			b.WriteString("<p>")
			writeLine(&b, blk.Lines[0])
			b.WriteString("</p>")
		case ListUnordered, ListOrdered:
			tag := "ul"
			if blk.List == ListOrdered {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			for _, ln := range blk.Lines {
				b.WriteString("<li>")
				writeLine(&b, ln)
				b.WriteString("</li>")
			}
			b.WriteString("</" + tag + ">")
		}
	}
	return b.String()
}

func writeLine(b *strings.Builder, ln Line) {
	for _, sp := range ln {
		if sp.Bold {
			b.WriteString("<strong>" + Escape(sp.Text) + "</strong>")
			continue
		}
		b.WriteString(Escape(sp.Text))
	}
}

// FullHTML renders CommonMark with raw HTML dropped from the input.
func FullHTML(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.SkipHTML | mdhtml.HrefTargetBlank,
	})
	out := markdown.ToHTML([]byte(text), p, r)
	return strings.TrimSpace(string(out))
}
