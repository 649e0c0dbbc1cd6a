// Package i18n holds the widget's user-facing strings. Bundles are TOML files
// embedded from locales/; keys missing from a bundle fall back to English.
package i18n

import (
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed locales/*.toml
var bundles embed.FS

const DefaultCode = "en"

type Locale struct {
	Code       string `toml:"-"`
	Plural     string `toml:"plural"`
	DateLayout string `toml:"date_layout"`

	Welcome          string `toml:"welcome"`
	SenderUser       string `toml:"sender_user"`
	SenderBot        string `toml:"sender_bot"`
	Typing           string `toml:"typing"`
	InputPlaceholder string `toml:"input_placeholder"`

	ErrorGeneric   string `toml:"error_generic"`
	ErrorInit      string `toml:"error_init"`
	ReauthRequired string `toml:"reauth_required"`
	LoginPrompt    string `toml:"login_prompt"`

	ClearConfirm string `toml:"clear_confirm"`
	ClearSuccess string `toml:"clear_success"`
	ClearFailed  string `toml:"clear_failed"`

	FeedbackSaved  string `toml:"feedback_saved"`
	FeedbackFailed string `toml:"feedback_failed"`
	Helpful        string `toml:"helpful"`
	NotHelpful     string `toml:"not_helpful"`
	RateLabel      string `toml:"rate_label"`

	LoginSuccess    string `toml:"login_success"`
	LoginFailed     string `toml:"login_failed"`
	RegisterSuccess string `toml:"register_success"`
	RegisterFailed  string `toml:"register_failed"`
	LogoutSuccess   string `toml:"logout_success"`

	AnalyticsTitle  string `toml:"analytics_title"`
	AnalyticsFailed string `toml:"analytics_failed"`
	AverageRating   string `toml:"average_rating"`
	TotalFeedback   string `toml:"total_feedback"`
	HelpfulShare    string `toml:"helpful_share"`
	Category        string `toml:"category"`
	Count           string `toml:"count"`
	Share           string `toml:"share"`
	NoData          string `toml:"no_data"`

	JustNow    string `toml:"just_now"`
	MinuteOne  string `toml:"minute_one"`
	MinuteFew  string `toml:"minute_few"`
	MinuteMany string `toml:"minute_many"`
	HourOne    string `toml:"hour_one"`
	HourFew    string `toml:"hour_few"`
	HourMany   string `toml:"hour_many"`
}

// Available lists the embedded locale codes.
func Available() []string {
	entries, err := bundles.ReadDir("locales")
	if err != nil {
		return []string{DefaultCode}
	}
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(codes)
	return codes
}

// Load returns the embedded locale for code, or decodes code as a TOML file
// path when it ends in ".toml".
func Load(code string) (*Locale, error) {
	loc, err := english()
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	switch {
	case code == "" || strings.EqualFold(code, DefaultCode):
		return loc, nil
	case strings.HasSuffix(code, ".toml"):
		if _, err := toml.DecodeFile(code, loc); err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", code, err)
		}
		loc.Code = strings.TrimSuffix(filepath.Base(code), ".toml")
		return loc, nil
	}

	code = strings.ToLower(code)
	data, err := bundles.ReadFile("locales/" + code + ".toml")
	if err != nil {
		return nil, fmt.Errorf("i18n: unknown locale %q", code)
	}
	if _, err := toml.Decode(string(data), loc); err != nil {
		return nil, fmt.Errorf("i18n: %s: %w", code, err)
	}
	loc.Code = code
	return loc, nil
}

// MustLoad is Load with English as the fallback for unknown codes.
func MustLoad(code string) *Locale {
	if loc, err := Load(code); err == nil {
		return loc
	}
	loc, err := english()
	if err != nil {
		panic(err)
	}
	return loc
}

func english() (*Locale, error) {
	data, err := bundles.ReadFile("locales/" + DefaultCode + ".toml")
	if err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}
	loc := &Locale{}
	if _, err := toml.Decode(string(data), loc); err != nil {
		return nil, fmt.Errorf("i18n: en: %w", err)
	}
	loc.Code = DefaultCode
	return loc, nil
}

// RelativeTime labels ts relative to now: "Just now" under a minute, minutes
// under an hour, hours under a day, then a date. A nil ts is "Just now".
func (l *Locale) RelativeTime(ts *time.Time, now time.Time) string {
	if ts == nil || ts.IsZero() {
		return l.JustNow
	}
	mins := int(now.Sub(*ts) / time.Minute)
	switch {
	case mins < 1:
		return l.JustNow
	case mins < 60:
		return fmt.Sprintf(l.pick(mins, l.MinuteOne, l.MinuteFew, l.MinuteMany), mins)
	case mins < 1440:
		hours := mins / 60
		return fmt.Sprintf(l.pick(hours, l.HourOne, l.HourFew, l.HourMany), hours)
	default:
		return ts.Local().Format(l.DateLayout)
	}
}

func (l *Locale) pick(n int, one, few, many string) string {
	switch l.Plural {
	case "ru":
		mod10, mod100 := n%10, n%100
		switch {
		case mod10 == 1 && mod100 != 11:
			return one
		case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
			return few
		default:
			return many
		}
	case "none":
		return one
	default:
		if n == 1 {
			return one
		}
		return many
	}
}
