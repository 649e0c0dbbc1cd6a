package format

import (
	"strconv"
	"strings"
)

// PlainText renders the lite dialect for line-oriented terminals: bold
// markers are dropped and list items get a bullet or their number.
func PlainText(text string) string {
	var lines []string
	for _, blk := range Parse(text) {
		for i, ln := range blk.Lines {
			var b strings.Builder
			switch blk.List {
			case ListUnordered:
				b.WriteString("  • ")
			case ListOrdered:
				b.WriteString("  " + strconv.Itoa(i+1) + ". ")
			}
			for _, sp := range ln {
				b.WriteString(sp.Text)
			}
			lines = append(lines, b.String())
		}
	}
	return strings.Join(lines, "\n")
}
