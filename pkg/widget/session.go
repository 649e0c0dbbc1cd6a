package widget

import (
	"context"
	"errors"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/logger"
)

// Start probes the session and, once ready, loads the history. A 401 from
// either call leaves the widget Unauthorized with the auth prompt shown and is
// not an error. Start may be called again after a failure.
func (w *Widget) Start(ctx context.Context) error {
	resp, err := w.api.Init(ctx)
	if errors.Is(err, bankapi.ErrNotFound) {
		logger.DebugC("widget", "No init endpoint, probing with history")
		return w.startFromHistory(ctx)
	}

	w.mu.Lock()
	switch {
	case bankapi.IsUnauthorized(err):
		w.clearInitFailure()
		w.setUnauthorized()
		w.changed()
		w.mu.Unlock()
		logger.InfoC("widget", "Session requires authentication")
		return nil
	case err != nil:
		w.failInit()
		w.changed()
		w.mu.Unlock()
		logger.ErrorCF("widget", "Session init failed", logFields(err))
		return err
	}
	w.clearInitFailure()
	w.state = Ready
	w.authPrompt = false
	w.setUser(resp.UserName)
	w.ensureWelcome()
	w.changed()
	w.mu.Unlock()

	logger.InfoCF("widget", "Session ready", map[string]interface{}{
		"status": resp.Status,
	})
	if err := w.LoadHistory(ctx); err != nil && !bankapi.IsUnauthorized(err) {
		return err
	}
	return nil
}

// startFromHistory uses the history fetch as the probe for backends that
// have no init endpoint.
func (w *Widget) startFromHistory(ctx context.Context) error {
	resp, err := w.api.History(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case bankapi.IsUnauthorized(err):
		w.clearInitFailure()
		w.setUnauthorized()
		w.changed()
		return nil
	case err != nil:
		w.failInit()
		w.changed()
		logger.ErrorCF("widget", "Session probe failed", logFields(err))
		return err
	}
	w.clearInitFailure()
	w.state = Ready
	w.authPrompt = false
	w.setUser(resp.UserName)
	w.ensureWelcome()
	w.renderHistory(resp.Messages)
	w.changed()
	return nil
}

// LoadHistory replaces the rendered messages with the server history. The
// welcome banner and visible notices stay.
func (w *Widget) LoadHistory(ctx context.Context) error {
	if w.State() != Ready {
		return ErrSkipped
	}
	resp, err := w.api.History(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if bankapi.IsUnauthorized(err) {
			w.setUnauthorized()
			w.notify(NoticeError, w.loc.ReauthRequired)
			w.changed()
		}
		logger.WarnCF("widget", "History load failed", logFields(err))
		return err
	}
	w.setUser(resp.UserName)
	w.renderHistory(resp.Messages)
	w.changed()
	return nil
}

// renderHistory emits a user block and a bot block per exchange, in order.
// Callers hold mu.
func (w *Widget) renderHistory(items []bankapi.HistoryItem) {
	w.filterBlocks(func(b *block) bool { return b.kind == BlockWelcome || b.kind == BlockNotice })
	for _, it := range items {
		ts := it.Timestamp.Ptr()
		w.appendMessage(&Message{Sender: SenderUser, Text: it.Message, Timestamp: ts})

		bot := &Message{Sender: SenderBot, Text: it.Response, Timestamp: ts, Category: it.Category}
		if it.ID != 0 {
			id := it.ID
			bot.ID = &id
		}
		if it.Feedback != nil {
			bot.Feedback = &Feedback{
				Rating:    it.Feedback.Rating,
				IsHelpful: it.Feedback.IsHelpful,
				Comment:   it.Feedback.Comment,
			}
		}
		w.appendMessage(bot)
	}
	logger.DebugCF("widget", "History rendered", map[string]interface{}{
		"exchanges": len(items),
	})
}

// Login authenticates and re-runs the session gate on success.
func (w *Widget) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrSkipped
	}
	err := w.api.Login(ctx, bankapi.Credentials{Email: email, Password: password})
	if err != nil {
		w.mu.Lock()
		w.notify(NoticeError, serverText(err, w.loc.LoginFailed))
		w.changed()
		w.mu.Unlock()
		logger.WarnCF("widget", "Login failed", logFields(err))
		return err
	}

	w.mu.Lock()
	w.state = Uninitialized
	w.blocks = nil
	w.analytics = nil
	w.userName = ""
	w.initNotice = ""
	w.notify(NoticeSuccess, w.loc.LoginSuccess)
	w.changed()
	w.mu.Unlock()
	logger.InfoC("widget", "Logged in")

	return w.Start(ctx)
}

// Register creates an account. The user still has to log in afterwards.
func (w *Widget) Register(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return ErrSkipped
	}
	err := w.api.Register(ctx, bankapi.Credentials{Name: name, Email: email, Password: password})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.notify(NoticeError, serverText(err, w.loc.RegisterFailed))
		w.changed()
		logger.WarnCF("widget", "Registration failed", logFields(err))
		return err
	}
	w.notify(NoticeSuccess, w.loc.RegisterSuccess)
	w.changed()
	return nil
}

// Logout ends the session and empties the view. An already expired session
// counts as logged out.
func (w *Widget) Logout(ctx context.Context) error {
	err := w.api.Logout(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil && !bankapi.IsUnauthorized(err) {
		w.notify(NoticeError, w.loc.ErrorGeneric)
		w.changed()
		logger.WarnCF("widget", "Logout failed", logFields(err))
		return err
	}
	w.blocks = nil
	w.analytics = nil
	w.userName = ""
	w.initNotice = ""
	w.setUnauthorized()
	w.notify(NoticeSuccess, w.loc.LogoutSuccess)
	w.changed()
	logger.InfoC("widget", "Logged out")
	return nil
}

// serverText prefers the backend's own error message.
func serverText(err error, fallback string) string {
	if msg := bankapi.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}
