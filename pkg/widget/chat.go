package widget

import (
	"context"
	"strings"
	"time"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/logger"
)

// Send posts one user message. It returns ErrSkipped without touching the
// view when the trimmed text is empty, the session is not ready, or another
// request is pending. The user bubble stays when the request fails.
func (w *Widget) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	w.mu.Lock()
	if text == "" || w.state != Ready || w.busy {
		w.mu.Unlock()
		return ErrSkipped
	}
	w.busy = true
	now := w.opts.Now()
	w.appendMessage(&Message{Sender: SenderUser, Text: text, Timestamp: &now})
	w.showTyping()
	w.changed()
	w.mu.Unlock()

	start := time.Now()
	resp, err := w.api.Chat(ctx, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	w.hideTyping()

	switch {
	case err == nil:
		bot := &Message{
			Sender:    SenderBot,
			Text:      resp.Response,
			Timestamp: resp.Timestamp.Ptr(),
			ID:        resp.MessageID,
			Category:  resp.Category,
		}
		if bot.Timestamp == nil {
			ts := w.opts.Now()
			bot.Timestamp = &ts
		}
		w.appendMessage(bot)
		w.setUser(resp.UserName)
		logger.DebugCF("widget", "Reply rendered", map[string]interface{}{
			"category":   resp.Category,
			"latency_ms": time.Since(start).Milliseconds(),
		})
	case bankapi.IsUnauthorized(err):
		w.setUnauthorized()
		w.notify(NoticeError, w.loc.ReauthRequired)
		logger.WarnC("widget", "Session expired during chat")
	default:
		w.notify(NoticeError, w.loc.ErrorGeneric)
		logger.ErrorCF("widget", "Chat request failed", logFields(err))
	}
	w.changed()
	return err
}

// Clear deletes the conversation after confirm approves it. A nil confirm
// falls back to Options.Confirm; with neither, nothing is cleared.
func (w *Widget) Clear(ctx context.Context, confirm Confirmer) error {
	if confirm == nil {
		confirm = w.opts.Confirm
	}
	if confirm == nil || !confirm(w.loc.ClearConfirm) {
		return ErrSkipped
	}

	err := w.api.ClearHistory(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		w.keepWelcomeOnly()
		w.notify(NoticeSuccess, w.loc.ClearSuccess)
		logger.InfoC("widget", "History cleared")
	case bankapi.IsUnauthorized(err):
		w.setUnauthorized()
		w.notify(NoticeError, w.loc.ReauthRequired)
	default:
		w.notify(NoticeError, w.loc.ClearFailed)
		logger.ErrorCF("widget", "Clear failed", logFields(err))
	}
	w.changed()
	return err
}
