package widget

import (
	"context"
	"fmt"
)

type EventKind string

const (
	EventSend           EventKind = "send"
	EventRate           EventKind = "rate"
	EventHelpful        EventKind = "helpful"
	EventClear          EventKind = "clear"
	EventAnalytics      EventKind = "analytics"
	EventCloseAnalytics EventKind = "close_analytics"
	EventLogin          EventKind = "login"
	EventRegister       EventKind = "register"
	EventLogout         EventKind = "logout"
	EventReload         EventKind = "reload"
)

// Event is a user action reported by a front end. Controls carry the message
// id they belong to, so one dispatcher serves every message on the page.
type Event struct {
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	Rating    int       `json:"rating,omitempty"`
	Helpful   *bool     `json:"helpful,omitempty"`
	Confirmed bool      `json:"confirmed,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"password,omitempty"`
}

// Dispatch routes ev to the matching widget action.
func (w *Widget) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventSend:
		return w.Send(ctx, ev.Text)
	case EventRate:
		return w.RateMessage(ctx, ev.MessageID, ev.Rating)
	case EventHelpful:
		if ev.Helpful == nil {
			return ErrSkipped
		}
		return w.MarkHelpful(ctx, ev.MessageID, *ev.Helpful)
	case EventClear:
		confirmed := ev.Confirmed
		return w.Clear(ctx, func(string) bool { return confirmed })
	case EventAnalytics:
		return w.OpenAnalytics(ctx)
	case EventCloseAnalytics:
		w.CloseAnalytics()
		return nil
	case EventLogin:
		return w.Login(ctx, ev.Email, ev.Password)
	case EventRegister:
		return w.Register(ctx, ev.Name, ev.Email, ev.Password)
	case EventLogout:
		return w.Logout(ctx)
	case EventReload:
		return w.Start(ctx)
	default:
		return fmt.Errorf("widget: unknown event %q", ev.Kind)
	}
}
