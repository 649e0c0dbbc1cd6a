package widget

import (
	"errors"
	"fmt"
	"time"
)

// ErrSkipped is returned when an action is rejected before any request is
// made: empty input, a pending request, or a session that is not ready.
// Front ends treat it as a silent no-op.
var ErrSkipped = errors.New("widget: skipped")

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Feedback is the rating state of one bot message. Rating 0 means unset.
type Feedback struct {
	Rating    int    `json:"rating"`
	IsHelpful *bool  `json:"is_helpful,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Message is one chat bubble. Only Feedback changes after creation.
type Message struct {
	Sender    Sender     `json:"sender"`
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	ID        *int64     `json:"id,omitempty"`
	Category  string     `json:"category,omitempty"`
	Feedback  *Feedback  `json:"feedback,omitempty"`
}

func (m Message) clone() *Message {
	c := m
	if m.Feedback != nil {
		fb := *m.Feedback
		if fb.IsHelpful != nil {
			h := *fb.IsHelpful
			fb.IsHelpful = &h
		}
		c.Feedback = &fb
	}
	return &c
}

// SessionState gates input.
type SessionState int

const (
	Uninitialized SessionState = iota
	Ready
	Unauthorized
)

func (s SessionState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Unauthorized:
		return "unauthorized"
	default:
		return "uninitialized"
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ready":
		*s = Ready
	case "unauthorized":
		*s = Unauthorized
	case "uninitialized", "":
		*s = Uninitialized
	default:
		return fmt.Errorf("widget: unknown session state %q", text)
	}
	return nil
}

type BlockKind string

const (
	BlockWelcome BlockKind = "welcome"
	BlockMessage BlockKind = "message"
	BlockTyping  BlockKind = "typing"
	BlockNotice  BlockKind = "notice"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Block is one rendered element of the conversation pane.
type Block struct {
	Key     string      `json:"key"`
	Kind    BlockKind   `json:"kind"`
	Level   NoticeLevel `json:"level,omitempty"`
	Text    string      `json:"text,omitempty"`
	Message *Message    `json:"message,omitempty"`
	HTML    string      `json:"html"`
}

// View is a consistent snapshot of everything a front end draws.
type View struct {
	Revision     uint64          `json:"revision"`
	State        SessionState    `json:"state"`
	InputEnabled bool            `json:"input_enabled"`
	Busy         bool            `json:"busy"`
	AuthPrompt   bool            `json:"auth_prompt"`
	UserName     string          `json:"user_name,omitempty"`
	Locale       string          `json:"locale"`
	Placeholder  string          `json:"placeholder"`
	Blocks       []Block         `json:"blocks"`
	HTML         string          `json:"html"`
	ScrollTo     string          `json:"scroll_to,omitempty"`
	Analytics    *AnalyticsPanel `json:"analytics,omitempty"`
}

// Messages returns the chat messages in display order.
func (v View) Messages() []Message {
	var out []Message
	for _, b := range v.Blocks {
		if b.Kind == BlockMessage && b.Message != nil {
			out = append(out, *b.Message)
		}
	}
	return out
}

// Notices returns the texts of the visible notices.
func (v View) Notices() []string {
	var out []string
	for _, b := range v.Blocks {
		if b.Kind == BlockNotice {
			out = append(out, b.Text)
		}
	}
	return out
}

// Typing reports whether the typing indicator is shown.
func (v View) Typing() bool {
	for _, b := range v.Blocks {
		if b.Kind == BlockTyping {
			return true
		}
	}
	return false
}
