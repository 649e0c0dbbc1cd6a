package widget

import (
	"strconv"
	"strings"

	"github.com/urmatovnaa/bankchat/pkg/format"
)

const stars = 5

func (w *Widget) renderWelcome(text string) string {
	return `<div class="message bot-message welcome-message"><div class="message-content"><div class="message-text">` +
		format.UserHTML(text) + `</div></div></div>`
}

func (w *Widget) renderTyping() string {
	var b strings.Builder
	b.WriteString(`<div class="message bot-message typing-message"><div class="typing-indicator"><span>`)
	b.WriteString(format.Escape(w.loc.Typing))
	b.WriteString(`</span><div class="typing-dots">`)
	for i := 0; i < 3; i++ {
		b.WriteString(`<div class="typing-dot"></div>`)
	}
	b.WriteString(`</div></div></div>`)
	return b.String()
}

func renderNotice(level NoticeLevel, text string) string {
	return `<div class="notice notice-` + string(level) + `" role="alert">` + format.Escape(text) + `</div>`
}

func (w *Widget) renderMessage(m *Message) string {
	var b strings.Builder

	sender, body := w.loc.SenderUser, format.UserHTML(m.Text)
	class := "user-message"
	if m.Sender == SenderBot {
		sender, body = w.loc.SenderBot, format.BotHTML(m.Text, w.opts.Markdown)
		class = "bot-message"
	}

	b.WriteString(`<div class="message ` + class + `"`)
	if m.ID != nil {
		b.WriteString(` data-message-id="` + strconv.FormatInt(*m.ID, 10) + `"`)
	}
	b.WriteString(`><div class="message-content"><div class="message-header"><strong>`)
	b.WriteString(format.Escape(sender))
	b.WriteString(`</strong><small class="timestamp">`)
	b.WriteString(format.Escape(w.loc.RelativeTime(m.Timestamp, w.opts.Now())))
	b.WriteString(`</small>`)
	if m.Category != "" {
		b.WriteString(`<span class="category-badge">` + format.Escape(m.Category) + `</span>`)
	}
	b.WriteString(`</div><div class="message-text">`)
	b.WriteString(body)
	b.WriteString(`</div>`)
	if m.Sender == SenderBot && m.ID != nil && w.opts.FeedbackEnabled {
		b.WriteString(w.renderFeedback(*m.ID, m.Feedback))
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

// renderFeedback draws the star and helpful controls. Buttons carry
// data-action attributes that the host page turns into Events.
func (w *Widget) renderFeedback(id int64, fb *Feedback) string {
	sid := strconv.FormatInt(id, 10)
	rating := 0
	var helpful *bool
	if fb != nil {
		rating, helpful = fb.Rating, fb.IsHelpful
	}

	var b strings.Builder
	b.WriteString(`<div class="feedback-controls" data-message-id="` + sid + `">`)
	b.WriteString(`<span class="rate-label">` + format.Escape(w.loc.RateLabel) + `</span><span class="stars">`)
	for i := 1; i <= stars; i++ {
		class := "star"
		if i <= rating {
			class += " active"
		}
		n := strconv.Itoa(i)
		b.WriteString(`<button type="button" class="` + class + `" data-action="rate" data-message-id="` + sid +
			`" data-rating="` + n + `" title="` + n + `">★</button>`)
	}
	b.WriteString(`</span>`)
	b.WriteString(helpfulButton(sid, true, w.loc.Helpful, helpful != nil && *helpful))
	b.WriteString(helpfulButton(sid, false, w.loc.NotHelpful, helpful != nil && !*helpful))
	b.WriteString(`</div>`)
	return b.String()
}

func helpfulButton(sid string, value bool, label string, active bool) string {
	class, icon := "helpful-btn", "👍"
	if !value {
		class, icon = "unhelpful-btn", "👎"
	}
	if active {
		class += " active"
	}
	return `<button type="button" class="` + class + `" data-action="helpful" data-message-id="` + sid +
		`" data-helpful="` + strconv.FormatBool(value) + `">` + icon + " " + format.Escape(label) + `</button>`
}
