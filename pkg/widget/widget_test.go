package widget_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/bankapi/bankapitest"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

type pendingTimer struct {
	d time.Duration
	f func()
}

// fakeTimers collects notice timers so tests decide when they fire.
type fakeTimers struct {
	mu      sync.Mutex
	pending []pendingTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.pending = append(ft.pending, pendingTimer{d: d, f: f})
}

func (ft *fakeTimers) Durations() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []time.Duration
	for _, p := range ft.pending {
		out = append(out, p.d)
	}
	return out
}

func (ft *fakeTimers) FireAll() {
	ft.mu.Lock()
	pending := ft.pending
	ft.pending = nil
	ft.mu.Unlock()
	for _, p := range pending {
		p.f()
	}
}

type harness struct {
	srv    *bankapitest.Server
	w      *widget.Widget
	timers *fakeTimers
	loc    *i18n.Locale
}

func newHarness(t *testing.T, configure ...func(*widget.Options)) *harness {
	t.Helper()
	srv := bankapitest.NewServer()
	t.Cleanup(srv.Close)

	client, err := bankapi.NewClient(srv.URL)
	require.NoError(t, err)

	h := &harness{srv: srv, timers: &fakeTimers{}, loc: i18n.MustLoad("en")}
	opts := widget.Options{
		Locale:          h.loc,
		AuthEnabled:     true,
		FeedbackEnabled: true,
		AfterFunc:       h.timers.AfterFunc,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.w = widget.New(client, opts)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.w.Start(context.Background()))
	require.Equal(t, widget.Ready, h.w.State())
}

func exchanges(n int) []bankapi.HistoryItem {
	items := make([]bankapi.HistoryItem, n)
	for i := range items {
		items[i] = bankapi.HistoryItem{Message: "question", Response: "answer", Category: "cards"}
	}
	return items
}

func kinds(v widget.View) []widget.BlockKind {
	var out []widget.BlockKind
	for _, b := range v.Blocks {
		out = append(out, b.Kind)
	}
	return out
}

func TestStartShowsWelcomeAndHistory(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("", exchanges(3)...)
	h.start(t)

	v := h.w.View()
	assert.True(t, v.InputEnabled)
	assert.False(t, v.AuthPrompt)
	require.Len(t, v.Blocks, 7)
	assert.Equal(t, widget.BlockWelcome, v.Blocks[0].Kind)
	assert.Equal(t, h.loc.Welcome, v.Blocks[0].Text)

	msgs := v.Messages()
	require.Len(t, msgs, 6)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, widget.SenderUser, m.Sender)
			assert.Equal(t, "question", m.Text)
			assert.Nil(t, m.ID)
			continue
		}
		assert.Equal(t, widget.SenderBot, m.Sender)
		assert.Equal(t, "answer", m.Text)
		assert.Equal(t, "cards", m.Category)
		require.NotNil(t, m.ID)
	}
}

func TestHistoryPairsRenderTwoBlocksEach(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		h := newHarness(t)
		h.srv.Seed("", exchanges(n)...)
		h.start(t)
		assert.Len(t, h.w.View().Messages(), 2*n)
	}
}

func TestHistoryCarriesFeedback(t *testing.T) {
	helpful := true
	h := newHarness(t)
	h.srv.Seed("", bankapi.HistoryItem{
		Message:  "fees?",
		Response: "none",
		Feedback: &bankapi.Feedback{Rating: 4, IsHelpful: &helpful},
	})
	h.start(t)

	v := h.w.View()
	bot := v.Messages()[1]
	require.NotNil(t, bot.Feedback)
	assert.Equal(t, 4, bot.Feedback.Rating)
	assert.True(t, *bot.Feedback.IsHelpful)
	assert.Equal(t, 4, countOf(v.Blocks[2].HTML, `class="star active"`))
	assert.Equal(t, 1, countOf(v.Blocks[2].HTML, `class="helpful-btn active"`))
}

func TestStartWithoutSessionRequiresLogin(t *testing.T) {
	h := newHarness(t)
	h.srv.SetRequireAuth(true)

	require.NoError(t, h.w.Start(context.Background()))
	v := h.w.View()
	assert.Equal(t, widget.Unauthorized, v.State)
	assert.False(t, v.InputEnabled)
	assert.True(t, v.AuthPrompt)
	assert.Equal(t, 0, h.srv.Calls("/api/history"))

	assert.ErrorIs(t, h.w.Send(context.Background(), "hello"), widget.ErrSkipped)
	assert.Equal(t, 0, h.srv.Calls("/api/chat"))
}

func TestStartFailureDisablesInput(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext("/api/init", 500, "database down")

	err := h.w.Start(context.Background())
	require.Error(t, err)

	v := h.w.View()
	assert.Equal(t, widget.Uninitialized, v.State)
	assert.False(t, v.InputEnabled)
	assert.Equal(t, []string{h.loc.ErrorInit}, v.Notices())
	assert.Empty(t, h.timers.Durations())
}

func TestStartRetryClearsInitFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext("/api/init", 500, "database down")
	require.Error(t, h.w.Start(context.Background()))
	h.srv.FailNext("/api/init", 502, "bad gateway")
	require.Error(t, h.w.Start(context.Background()))
	assert.Equal(t, []string{h.loc.ErrorInit}, h.w.View().Notices())

	h.start(t)
	v := h.w.View()
	assert.True(t, v.InputEnabled)
	assert.Empty(t, v.Notices())
	assert.Equal(t, widget.BlockWelcome, v.Blocks[0].Kind)
}

func TestStartHistoryUnauthorizedIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext("/api/history", 401, "Authentication required")

	require.NoError(t, h.w.Start(context.Background()))
	v := h.w.View()
	assert.Equal(t, widget.Unauthorized, v.State)
	assert.True(t, v.AuthPrompt)
	assert.False(t, h.w.CanSend())
	assert.Contains(t, v.Notices(), h.loc.ReauthRequired)
}

func TestStartHistoryFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext("/api/history", 500, "database down")

	require.Error(t, h.w.Start(context.Background()))
	assert.Equal(t, widget.Ready, h.w.State())
}

func TestStartFallsBackToHistoryProbe(t *testing.T) {
	h := newHarness(t)
	h.srv.DisableInit()
	h.srv.Seed("", exchanges(1)...)
	h.start(t)

	v := h.w.View()
	assert.Equal(t, []widget.BlockKind{widget.BlockWelcome, widget.BlockMessage, widget.BlockMessage}, kinds(v))
	assert.Equal(t, 1, h.srv.Calls("/api/history"))
}

func TestWelcomeMessageOverride(t *testing.T) {
	h := newHarness(t, func(o *widget.Options) { o.WelcomeMessage = "Hi from Demo Bank" })
	h.start(t)
	assert.Equal(t, "Hi from Demo Bank", h.w.View().Blocks[0].Text)
}

func TestLoginReRunsSessionGate(t *testing.T) {
	h := newHarness(t)
	h.srv.SetRequireAuth(true)
	h.srv.AddUser("aida@example.com", "secret")
	require.NoError(t, h.w.Start(context.Background()))

	err := h.w.Login(context.Background(), "aida@example.com", "wrong")
	require.Error(t, err)
	v := h.w.View()
	assert.Equal(t, widget.Unauthorized, v.State)
	assert.Contains(t, v.Notices(), "Invalid email or password")

	require.NoError(t, h.w.Login(context.Background(), "aida@example.com", "secret"))
	v = h.w.View()
	assert.Equal(t, widget.Ready, v.State)
	assert.True(t, v.InputEnabled)
	assert.False(t, v.AuthPrompt)
	assert.Contains(t, v.Notices(), h.loc.LoginSuccess)
	require.NoError(t, h.w.Send(context.Background(), "hello"))
}

func TestUserNameFollowsSession(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	assert.Empty(t, h.w.View().UserName)

	require.NoError(t, h.w.Register(context.Background(), "Aida", "aida@example.com", "secret"))
	require.NoError(t, h.w.Login(context.Background(), "aida@example.com", "secret"))
	assert.Equal(t, "Aida", h.w.View().UserName)

	require.NoError(t, h.w.Logout(context.Background()))
	assert.Empty(t, h.w.View().UserName)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser("taken@example.com", "pw")

	require.NoError(t, h.w.Register(context.Background(), "Aida", "new@example.com", "pw"))
	assert.Contains(t, h.w.View().Notices(), h.loc.RegisterSuccess)

	require.Error(t, h.w.Register(context.Background(), "", "taken@example.com", "pw"))
	assert.Contains(t, h.w.View().Notices(), "User already exists")

	assert.ErrorIs(t, h.w.Register(context.Background(), "", "", ""), widget.ErrSkipped)
}

func TestLogoutEmptiesView(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("", exchanges(2)...)
	h.start(t)

	require.NoError(t, h.w.Logout(context.Background()))
	v := h.w.View()
	assert.Equal(t, widget.Unauthorized, v.State)
	assert.True(t, v.AuthPrompt)
	assert.Empty(t, v.Messages())
	assert.Equal(t, []string{h.loc.LogoutSuccess}, v.Notices())
}

func TestSubscribeIsNotifiedOnChange(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	ch, cancel := h.w.Subscribe()
	defer cancel()
	before := h.w.View().Revision

	require.NoError(t, h.w.Send(context.Background(), "ping"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	assert.Greater(t, h.w.View().Revision, before)
}

func TestLocalizedLabels(t *testing.T) {
	ru := i18n.MustLoad("ru")
	h := newHarness(t, func(o *widget.Options) { o.Locale = ru })
	h.start(t)
	require.NoError(t, h.w.Send(context.Background(), "привет"))

	v := h.w.View()
	assert.Equal(t, "ru", v.Locale)
	assert.Contains(t, v.HTML, ru.SenderBot)
	assert.Contains(t, v.HTML, ru.Welcome)
	assert.Equal(t, ru.InputPlaceholder, v.Placeholder)
}
