package bankapi

import (
	"encoding/json"
	"strings"
	"time"
)

// InitResponse is returned by the session probe.
type InitResponse struct {
	Status   string `json:"status"`
	UserName string `json:"user_name,omitempty"`
}

// SessionCreated reports whether the probe opened a fresh session.
func (r InitResponse) SessionCreated() bool {
	return r.Status == "session_created"
}

type chatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the bot's answer to one user message.
type ChatResponse struct {
	Response  string    `json:"response"`
	Timestamp Timestamp `json:"timestamp"`
	MessageID *int64    `json:"message_id"`
	Category  string    `json:"category"`
	UserName  string    `json:"user_name,omitempty"`
}

// Feedback as stored by the server for one message.
type Feedback struct {
	ID        int64     `json:"id,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	IsHelpful *bool     `json:"is_helpful"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
}

// HistoryItem is one user/bot exchange.
type HistoryItem struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp Timestamp `json:"timestamp"`
	Category  string    `json:"category"`
	Feedback  *Feedback `json:"feedback"`
}

type HistoryResponse struct {
	Messages []HistoryItem `json:"messages"`
	UserName string        `json:"user_name,omitempty"`
}

// FeedbackRequest updates the feedback attached to MessageID.
type FeedbackRequest struct {
	MessageID int64  `json:"message_id"`
	Rating    int    `json:"rating"`
	IsHelpful *bool  `json:"is_helpful,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

type FeedbackStats struct {
	AverageRating float64 `json:"average_rating"`
	TotalFeedback int     `json:"total_feedback"`
	HelpfulCount  int     `json:"helpful_count"`
}

type CategoryStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Analytics is the aggregate panel payload. Either half may be absent.
type Analytics struct {
	FeedbackStats *FeedbackStats `json:"feedback_stats"`
	CategoryStats []CategoryStat `json:"category_stats"`
}

// Credentials for login and register.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Timestamp accepts the ISO-8601 forms the backend emits, with or without a
// zone, and treats null or "" as unset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Ptr returns nil for an unset timestamp.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
