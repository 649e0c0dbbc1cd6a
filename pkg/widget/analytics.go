package widget

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/logger"
)

// CategoryRow is one line of the category table.
type CategoryRow struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// AnalyticsPanel is the summary shown by OpenAnalytics.
type AnalyticsPanel struct {
	AverageRating  float64       `json:"average_rating"`
	TotalFeedback  int           `json:"total_feedback"`
	HelpfulCount   int           `json:"helpful_count"`
	HelpfulPercent int           `json:"helpful_percent"`
	Categories     []CategoryRow `json:"categories"`
	HTML           string        `json:"html"`
}

// Average formats the mean rating with one decimal.
func (p AnalyticsPanel) Average() string {
	return strconv.FormatFloat(p.AverageRating, 'f', 1, 64)
}

// Helpful formats the helpful share as a whole percentage.
func (p AnalyticsPanel) Helpful() string {
	return strconv.Itoa(p.HelpfulPercent) + "%"
}

// BuildAnalytics turns the backend payload into a panel. Missing halves of
// the payload count as zero.
func BuildAnalytics(a *bankapi.Analytics, loc *i18n.Locale) AnalyticsPanel {
	var p AnalyticsPanel
	if a != nil && a.FeedbackStats != nil {
		p.AverageRating = a.FeedbackStats.AverageRating
		p.TotalFeedback = a.FeedbackStats.TotalFeedback
		p.HelpfulCount = a.FeedbackStats.HelpfulCount
		if p.TotalFeedback > 0 {
			p.HelpfulPercent = percent(p.HelpfulCount, p.TotalFeedback)
		}
	}

	if a != nil {
		total := 0
		for _, c := range a.CategoryStats {
			total += c.Count
		}
		for _, c := range a.CategoryStats {
			row := CategoryRow{Name: c.Category, Count: c.Count}
			if total > 0 {
				row.Percent = percent(c.Count, total)
			}
			p.Categories = append(p.Categories, row)
		}
	}

	p.HTML = renderAnalytics(p, loc)
	return p
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}

func renderAnalytics(p AnalyticsPanel, loc *i18n.Locale) string {
	var b strings.Builder
	b.WriteString(`<div class="analytics-panel"><h3>` + format.Escape(loc.AnalyticsTitle) + `</h3>`)
	b.WriteString(`<div class="stats-grid">`)
	stat := func(label, value string) {
		b.WriteString(`<div class="stat-card"><div class="stat-value">` + format.Escape(value) +
			`</div><div class="stat-label">` + format.Escape(label) + `</div></div>`)
	}
	stat(loc.AverageRating, p.Average())
	stat(loc.TotalFeedback, strconv.Itoa(p.TotalFeedback))
	stat(loc.HelpfulShare, p.Helpful())
	b.WriteString(`</div>`)

	b.WriteString(`<table class="category-table"><thead><tr><th>` + format.Escape(loc.Category) +
		`</th><th>` + format.Escape(loc.Count) + `</th><th>` + format.Escape(loc.Share) + `</th></tr></thead><tbody>`)
	if len(p.Categories) == 0 {
		b.WriteString(`<tr><td colspan="3">` + format.Escape(loc.NoData) + `</td></tr>`)
	}
	for _, row := range p.Categories {
		name := row.Name
		if name == "" {
			name = "—"
		}
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td><td>%d%%</td></tr>`, format.Escape(name), row.Count, row.Percent)
	}
	b.WriteString(`</tbody></table></div>`)
	return b.String()
}

// OpenAnalytics fetches the summary and shows the panel.
func (w *Widget) OpenAnalytics(ctx context.Context) error {
	a, err := w.api.Analytics(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		panel := BuildAnalytics(a, w.loc)
		w.analytics = &panel
	case bankapi.IsUnauthorized(err):
		w.setUnauthorized()
		w.notify(NoticeError, w.loc.ReauthRequired)
	default:
		w.notify(NoticeError, w.loc.AnalyticsFailed)
		logger.WarnCF("widget", "Analytics failed", logFields(err))
	}
	w.changed()
	return err
}

// CloseAnalytics hides the panel.
func (w *Widget) CloseAnalytics() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.analytics == nil {
		return
	}
	w.analytics = nil
	w.changed()
}
