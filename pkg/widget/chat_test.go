package widget_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

func countOf(s, sub string) int { return strings.Count(s, sub) }

func TestSendRendersReply(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	require.NoError(t, h.w.Send(context.Background(), "  card limit  "))

	v := h.w.View()
	assert.True(t, v.InputEnabled)
	assert.False(t, v.Typing())
	msgs := v.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "card limit", msgs[0].Text)
	assert.Equal(t, "You said: **card limit**", msgs[1].Text)
	assert.Equal(t, "general", msgs[1].Category)
	require.NotNil(t, msgs[1].ID)
	require.NotNil(t, msgs[1].Timestamp)

	bot := v.Blocks[len(v.Blocks)-1]
	assert.Equal(t, bot.Key, v.ScrollTo)
	assert.Contains(t, bot.HTML, "<strong>card limit</strong>")
	assert.Contains(t, bot.HTML, `<span class="category-badge">general</span>`)
	assert.Contains(t, bot.HTML, `class="feedback-controls"`)
	assert.Contains(t, bot.HTML, h.loc.JustNow)
}

func TestSendEscapesUserText(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	require.NoError(t, h.w.Send(context.Background(), "<img src=x onerror=alert(1)> **x**"))

	user := h.w.View().Blocks[1]
	assert.Contains(t, user.HTML, "&lt;img src=x onerror=alert(1)&gt; **x**")
	assert.NotContains(t, user.HTML, "<img")
	assert.Contains(t, user.HTML, `class="message user-message"`)
}

func TestSendIgnoresBlankInput(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	before := h.w.View()

	for _, text := range []string{"", "   ", "\n\t "} {
		assert.ErrorIs(t, h.w.Send(context.Background(), text), widget.ErrSkipped)
	}
	after := h.w.View()
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, before.HTML, after.HTML)
	assert.Equal(t, 0, h.srv.Calls("/api/chat"))
}

func TestRapidSendsIssueOneRequest(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	release := h.srv.Hold("/api/chat")
	defer release()

	const n = 10
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { results <- h.w.Send(context.Background(), "transfer") }()
	}

	for i := 0; i < n-1; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, widget.ErrSkipped)
		case <-time.After(5 * time.Second):
			t.Fatal("skipped sends did not return")
		}
	}

	v := h.w.View()
	assert.True(t, v.Busy)
	assert.False(t, v.InputEnabled)
	assert.True(t, v.Typing())
	assert.False(t, h.w.CanSend())

	release()
	require.NoError(t, <-results)
	assert.Equal(t, 1, h.srv.Calls("/api/chat"))
	assert.Len(t, h.w.View().Messages(), 2)
	assert.True(t, h.w.View().InputEnabled)
}

func TestSendFailureKeepsUserBubble(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.srv.FailNext("/api/chat", 500, "model offline")

	err := h.w.Send(context.Background(), "hello")
	var se *bankapi.ServerError
	require.True(t, errors.As(err, &se))

	v := h.w.View()
	assert.Equal(t, widget.Ready, v.State)
	assert.True(t, v.InputEnabled)
	assert.False(t, v.Typing())
	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, widget.SenderUser, msgs[0].Sender)
	assert.Equal(t, []string{h.loc.ErrorGeneric}, v.Notices())
}

func TestExpiredSessionBlocksSendsUntilLogin(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.srv.AddUser("aida@example.com", "secret")
	h.srv.SetRequireAuth(true)
	h.srv.ExpireSessions()

	err := h.w.Send(context.Background(), "balance")
	require.True(t, bankapi.IsUnauthorized(err))

	v := h.w.View()
	assert.Equal(t, widget.Unauthorized, v.State)
	assert.False(t, v.InputEnabled)
	assert.True(t, v.AuthPrompt)
	assert.False(t, v.Typing())
	assert.Contains(t, v.Notices(), h.loc.ReauthRequired)

	assert.ErrorIs(t, h.w.Send(context.Background(), "balance"), widget.ErrSkipped)
	assert.Equal(t, 1, h.srv.Calls("/api/chat"))

	require.NoError(t, h.w.Login(context.Background(), "aida@example.com", "secret"))
	require.NoError(t, h.w.Send(context.Background(), "balance"))
	assert.Equal(t, 2, h.srv.Calls("/api/chat"))
}

func TestNoticesExpireByLevel(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.srv.FailNext("/api/chat", 500, "")
	require.Error(t, h.w.Send(context.Background(), "hello"))
	assert.Equal(t, []time.Duration{widget.DefaultErrorTTL}, h.timers.Durations())

	h.timers.FireAll()
	assert.Empty(t, h.w.View().Notices())

	require.NoError(t, h.w.Clear(context.Background(), func(string) bool { return true }))
	assert.Equal(t, []time.Duration{widget.DefaultSuccessTTL}, h.timers.Durations())
	assert.Equal(t, []string{h.loc.ClearSuccess}, h.w.View().Notices())

	h.timers.FireAll()
	assert.Empty(t, h.w.View().Notices())
}

func TestNoticeRemovedByClearExpiresQuietly(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.srv.FailNext("/api/chat", 500, "")
	require.Error(t, h.w.Send(context.Background(), "hello"))

	require.NoError(t, h.w.Clear(context.Background(), func(string) bool { return true }))
	rev := h.w.View().Revision

	h.timers.FireAll()
	v := h.w.View()
	assert.Equal(t, []widget.BlockKind{widget.BlockWelcome}, kinds(v))
	// Only the clear notice was still attached.
	assert.Equal(t, rev+1, v.Revision)
}

func TestClearNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("", exchanges(2)...)
	h.start(t)

	var prompt string
	deny := func(p string) bool { prompt = p; return false }
	assert.ErrorIs(t, h.w.Clear(context.Background(), deny), widget.ErrSkipped)
	assert.Equal(t, h.loc.ClearConfirm, prompt)

	assert.ErrorIs(t, h.w.Clear(context.Background(), nil), widget.ErrSkipped)
	assert.Len(t, h.w.View().Messages(), 4)
	assert.Equal(t, 0, h.srv.Calls("/api/clear"))
}

func TestClearUsesConfiguredConfirmer(t *testing.T) {
	h := newHarness(t, func(o *widget.Options) {
		o.Confirm = func(string) bool { return true }
	})
	h.srv.Seed("", exchanges(2)...)
	h.start(t)

	require.NoError(t, h.w.Clear(context.Background(), nil))
	v := h.w.View()
	assert.Equal(t, []widget.BlockKind{widget.BlockWelcome, widget.BlockNotice}, kinds(v))
	assert.Equal(t, 1, h.srv.Calls("/api/clear"))

	require.NoError(t, h.w.LoadHistory(context.Background()))
	assert.Empty(t, h.w.View().Messages())
}

func TestClearFailureKeepsMessages(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("", exchanges(1)...)
	h.start(t)
	h.srv.FailNext("/api/clear", 500, "")

	require.Error(t, h.w.Clear(context.Background(), func(string) bool { return true }))
	v := h.w.View()
	assert.Len(t, v.Messages(), 2)
	assert.Equal(t, []string{h.loc.ClearFailed}, v.Notices())
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()

	require.NoError(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventSend, Text: "hi"}))
	id := *h.w.View().Messages()[1].ID

	require.NoError(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventRate, MessageID: id, Rating: 4}))
	assert.Equal(t, 4, h.srv.Feedback(id).Rating)

	assert.ErrorIs(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventHelpful, MessageID: id}), widget.ErrSkipped)

	assert.ErrorIs(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventClear}), widget.ErrSkipped)
	require.NoError(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventClear, Confirmed: true}))
	assert.Empty(t, h.w.View().Messages())

	require.NoError(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventAnalytics}))
	assert.NotNil(t, h.w.View().Analytics)
	require.NoError(t, h.w.Dispatch(ctx, widget.Event{Kind: widget.EventCloseAnalytics}))
	assert.Nil(t, h.w.View().Analytics)

	assert.Error(t, h.w.Dispatch(ctx, widget.Event{Kind: "dance"}))
}
