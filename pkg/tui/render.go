package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

// TaggedText renders a bot reply with tview color tags. It shares the line
// classifier of the HTML renderer.
func TaggedText(text string) string {
	var lines []string
	for _, blk := range format.Parse(text) {
		for i, ln := range blk.Lines {
			var prefix string
			switch blk.List {
			case format.ListUnordered:
				prefix = "  • "
			case format.ListOrdered:
				prefix = "  " + strconv.Itoa(i+1) + ". "
			}
			lines = append(lines, prefix+taggedLine(ln))
		}
	}
	return strings.Join(lines, "\n")
}

func taggedLine(ln format.Line) string {
	var b strings.Builder
	for _, sp := range ln {
		if sp.Bold {
			b.WriteString("[::b]" + tview.Escape(sp.Text) + "[::-]")
			continue
		}
		b.WriteString(tview.Escape(sp.Text))
	}
	return b.String()
}

// RenderView draws the conversation pane for a view snapshot.
func RenderView(v widget.View, loc *i18n.Locale, now time.Time) string {
	var parts []string
	for _, b := range v.Blocks {
		switch b.Kind {
		case widget.BlockWelcome:
			parts = append(parts, "[::i]"+tview.Escape(b.Text)+"[::-]")
		case widget.BlockMessage:
			if b.Message != nil {
				parts = append(parts, renderMessage(*b.Message, loc, now))
			}
		case widget.BlockTyping:
			parts = append(parts, "[gray]"+tview.Escape(loc.Typing)+"…[-]")
		case widget.BlockNotice:
			color := "green"
			switch b.Level {
			case widget.NoticeError:
				color = "red"
			case widget.NoticeInfo:
				color = "gray"
			}
			parts = append(parts, "["+color+"]"+tview.Escape(b.Text)+"[-]")
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderMessage(m widget.Message, loc *i18n.Locale, now time.Time) string {
	var b strings.Builder
	when := tview.Escape(loc.RelativeTime(m.Timestamp, now))

	if m.Sender == widget.SenderUser {
		fmt.Fprintf(&b, "[blue::b]%s[-::-] [gray]%s[-]\n", tview.Escape(loc.SenderUser), when)
		b.WriteString(tview.Escape(m.Text))
		return b.String()
	}

	fmt.Fprintf(&b, "[green::b]%s[-::-] [gray]%s[-]", tview.Escape(loc.SenderBot), when)
	if m.ID != nil {
		fmt.Fprintf(&b, " [gray]#%d[-]", *m.ID)
	}
	if m.Category != "" {
		fmt.Fprintf(&b, " [teal]%s[-]", tview.Escape(m.Category))
	}
	b.WriteString("\n")
	b.WriteString(TaggedText(m.Text))
	if m.ID != nil && m.Feedback != nil {
		b.WriteString("\n" + feedbackLine(*m.Feedback, loc))
	}
	return b.String()
}

func feedbackLine(fb widget.Feedback, loc *i18n.Locale) string {
	line := "[yellow]" + strings.Repeat("★", fb.Rating) + strings.Repeat("☆", 5-fb.Rating) + "[-]"
	if fb.IsHelpful != nil {
		if *fb.IsHelpful {
			line += " 👍 " + tview.Escape(loc.Helpful)
		} else {
			line += " 👎 " + tview.Escape(loc.NotHelpful)
		}
	}
	return line
}

// RenderAnalytics draws the analytics panel as plain text, for the TUI
// modal and the analytics command.
func RenderAnalytics(p widget.AnalyticsPanel, loc *i18n.Locale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", loc.AnalyticsTitle)
	fmt.Fprintf(&b, "%-20s %s\n", loc.AverageRating+":", p.Average())
	fmt.Fprintf(&b, "%-20s %d\n", loc.TotalFeedback+":", p.TotalFeedback)
	fmt.Fprintf(&b, "%-20s %s\n\n", loc.HelpfulShare+":", p.Helpful())
	fmt.Fprintf(&b, "%-20s %8s %8s\n", loc.Category, loc.Count, loc.Share)
	if len(p.Categories) == 0 {
		b.WriteString(loc.NoData + "\n")
	}
	for _, row := range p.Categories {
		name := row.Name
		if name == "" {
			name = "—"
		}
		fmt.Fprintf(&b, "%-20s %8d %7d%%\n", name, row.Count, row.Percent)
	}
	return b.String()
}
