package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/bankapi/bankapitest"
	"github.com/urmatovnaa/bankchat/pkg/config"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

type fixture struct {
	backend *bankapitest.Server
	channel *WebChatChannel
	server  *httptest.Server
	client  *http.Client
	created atomic.Int32
}

func newFixture(t *testing.T, loc *i18n.Locale) *fixture {
	t.Helper()
	f := &fixture{backend: bankapitest.NewServer()}
	t.Cleanup(f.backend.Close)

	factory := func() (*widget.Widget, error) {
		f.created.Add(1)
		api, err := bankapi.NewClient(f.backend.URL)
		if err != nil {
			return nil, err
		}
		return widget.New(api, widget.Options{
			Locale:          loc,
			AuthEnabled:     true,
			FeedbackEnabled: true,
			AfterFunc:       func(time.Duration, func()) {},
		}), nil
	}

	ch, err := NewWebChatChannel(config.WebChatConfig{Host: "127.0.0.1"}, loc, factory)
	require.NoError(t, err)
	f.channel = ch
	f.server = httptest.NewServer(ch.Handler())
	t.Cleanup(f.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return f
}

func (f *fixture) state(t *testing.T) widget.View {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + "/widget/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v widget.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) event(t *testing.T, body string) eventResponse {
	t.Helper()
	resp, err := f.client.Post(f.server.URL+"/widget/event", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out eventResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPageUsesLocale(t *testing.T) {
	ru := i18n.MustLoad("ru")
	f := newFixture(t, ru)

	resp, err := f.client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page := string(body)
	assert.Contains(t, page, `<html lang="ru">`)
	assert.Contains(t, page, ru.InputPlaceholder)
	assert.NotContains(t, page, "{{")
}

func TestStateOpensOneWidgetPerSession(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))

	v := f.state(t)
	assert.Equal(t, widget.Ready, v.State)
	assert.True(t, v.InputEnabled)
	assert.Contains(t, v.HTML, "welcome-message")

	f.state(t)
	assert.Equal(t, int32(1), f.created.Load())
	assert.Equal(t, 1, f.backend.Calls("/api/init"))

	other := &http.Client{}
	resp, err := other.Get(f.server.URL + "/widget/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), f.created.Load())
}

func TestEventSendAndSkip(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))
	f.state(t)

	out := f.event(t, `{"kind":"send","text":"card fees"}`)
	assert.True(t, out.OK)
	msgs := out.View.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "card fees", msgs[0].Text)

	out = f.event(t, `{"kind":"send","text":"   "}`)
	assert.False(t, out.OK)
	assert.True(t, out.Skipped)
	assert.Equal(t, 1, f.backend.Calls("/api/chat"))

	id := *msgs[1].ID
	out = f.event(t, `{"kind":"rate","message_id":`+jsonInt(id)+`,"rating":4}`)
	assert.True(t, out.OK)
	assert.Equal(t, 4, f.backend.Feedback(id).Rating)

	out = f.event(t, `{"kind":"clear","confirmed":false}`)
	assert.True(t, out.Skipped)
	assert.Len(t, out.View.Messages(), 2)
}

func TestEventRejectsBadJSON(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))
	resp, err := f.client.Post(f.server.URL+"/widget/event", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketPushesViews(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))
	f.state(t)

	dialer := websocket.Dialer{Jar: f.client.Jar, HandshakeTimeout: 5 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/widget/ws"
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var v widget.View
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, widget.Ready, v.State)

	require.NoError(t, conn.WriteJSON(widget.Event{Kind: widget.EventSend, Text: "hello"}))
	for len(v.Messages()) < 2 || v.Typing() {
		var next widget.View
		require.NoError(t, conn.ReadJSON(&next))
		v = next
	}
	assert.Equal(t, "You said: **hello**", v.Messages()[1].Text)
	assert.Equal(t, int32(1), f.created.Load())
}

func TestReloadRetriesFailedStart(t *testing.T) {
	loc := i18n.MustLoad("en")
	f := newFixture(t, loc)
	f.backend.FailNext("/api/init", http.StatusInternalServerError, "maintenance")

	v := f.state(t)
	assert.Equal(t, widget.Uninitialized, v.State)
	assert.False(t, v.InputEnabled)
	assert.Equal(t, []string{loc.ErrorInit}, v.Notices())

	resp, err := f.client.Get(f.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	v = f.state(t)
	assert.Equal(t, widget.Ready, v.State)
	assert.True(t, v.InputEnabled)
	assert.Empty(t, v.Notices())
	assert.Contains(t, v.HTML, "welcome-message")
	assert.Equal(t, int32(1), f.created.Load())
	assert.Equal(t, 2, f.backend.Calls("/api/init"))

	f.state(t)
	assert.Equal(t, 2, f.backend.Calls("/api/init"))
}

func TestSendSurvivesAbandonedRequest(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))
	f.state(t)
	release := f.backend.Hold("/api/chat")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.server.URL+"/widget/event",
		strings.NewReader(`{"kind":"send","text":"transfer limits"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	errc := make(chan error, 1)
	go func() {
		resp, err := f.client.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errc <- err
	}()

	require.Eventually(t, func() bool { return f.backend.Calls("/api/chat") == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.Error(t, <-errc)
	release()

	require.Eventually(t, func() bool {
		return len(f.state(t).Messages()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	v := f.state(t)
	assert.Equal(t, "You said: **transfer limits**", v.Messages()[1].Text)
	assert.Empty(t, v.Notices())
}

func TestWebSocketHandshakeSetsSessionCookie(t *testing.T) {
	f := newFixture(t, i18n.MustLoad("en"))

	dialer := websocket.Dialer{Jar: f.client.Jar, HandshakeTimeout: 5 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/widget/ws"
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	var names []string
	for _, c := range resp.Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, sessionCookie)

	v := f.state(t)
	assert.Equal(t, widget.Ready, v.State)
	assert.Equal(t, int32(1), f.created.Load())
}

func TestWithActionTimeout(t *testing.T) {
	factory := func() (*widget.Widget, error) { return nil, assert.AnError }
	ch, err := NewWebChatChannel(config.WebChatConfig{}, nil, factory, WithActionTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, ch.actionTimeout)

	ch, err = NewWebChatChannel(config.WebChatConfig{}, nil, factory, WithActionTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, defaultActionTimeout, ch.actionTimeout)
}

func TestStartAndStop(t *testing.T) {
	factory := func() (*widget.Widget, error) { return nil, assert.AnError }
	ch, err := NewWebChatChannel(config.WebChatConfig{Host: "127.0.0.1", Port: 0}, nil, factory)
	require.NoError(t, err)

	require.NoError(t, ch.Start(context.Background()))
	assert.True(t, ch.IsRunning())
	require.NotEmpty(t, ch.Addr())

	resp, err := http.Get("http://" + ch.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + ch.Addr() + "/widget/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	require.NoError(t, ch.Stop(context.Background()))
	assert.False(t, ch.IsRunning())
}

func TestNewWebChatChannelNeedsFactory(t *testing.T) {
	_, err := NewWebChatChannel(config.WebChatConfig{}, nil, nil)
	assert.Error(t, err)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
