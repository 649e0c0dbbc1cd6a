package tui

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/bankapi/bankapitest"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

type scriptedLines struct {
	lines []string
}

func (s *scriptedLines) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestWidget(t *testing.T) (*widget.Widget, *bankapitest.Server) {
	t.Helper()
	srv := bankapitest.NewServer()
	t.Cleanup(srv.Close)
	client, err := bankapi.NewClient(srv.URL)
	require.NoError(t, err)
	w := widget.New(client, widget.Options{
		Locale:          i18n.MustLoad("en"),
		AuthEnabled:     true,
		FeedbackEnabled: true,
		AfterFunc:       func(time.Duration, func()) {},
	})
	return w, srv
}

func TestREPLConversation(t *testing.T) {
	w, srv := newTestWidget(t)
	srv.Seed("", bankapi.HistoryItem{Message: "old question", Response: "old answer", Category: "cards"})

	var out bytes.Buffer
	in := &scriptedLines{lines: []string{"", "balance?", "/bogus", "/quit", "never read"}}
	require.NoError(t, NewREPL(w, in, &out).Run(context.Background()))

	text := out.String()
	loc := w.Locale()
	assert.Contains(t, text, loc.Welcome)
	assert.Contains(t, text, "You: old question")
	assert.Contains(t, text, "(cards): old answer")
	assert.Contains(t, text, "(general): You said: balance?")
	assert.NotContains(t, text, "You: balance?")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Equal(t, []string{"never read"}, in.lines)
	assert.Equal(t, 1, srv.Calls("/api/chat"))
}

func TestREPLClearAsksFirst(t *testing.T) {
	w, srv := newTestWidget(t)
	srv.Seed("", bankapi.HistoryItem{Message: "q", Response: "a"})

	var out bytes.Buffer
	in := &scriptedLines{lines: []string{"/clear", "n", "/clear", "yes"}}
	require.NoError(t, NewREPL(w, in, &out).Run(context.Background()))

	assert.Equal(t, 1, srv.Calls("/api/clear"))
	assert.Contains(t, out.String(), w.Locale().ClearConfirm+" [y/N]")
	assert.Contains(t, out.String(), "[success] "+w.Locale().ClearSuccess)
	assert.Empty(t, w.View().Messages())
}

func TestREPLShowsLoginPrompt(t *testing.T) {
	w, srv := newTestWidget(t)
	srv.SetRequireAuth(true)
	srv.AddUser("a@b.kg", "pw")

	var out bytes.Buffer
	in := &scriptedLines{lines: []string{"hello", "/login a@b.kg pw"}}
	require.NoError(t, NewREPL(w, in, &out).Run(context.Background()))

	assert.Contains(t, out.String(), w.Locale().LoginPrompt)
	assert.Equal(t, 0, srv.Calls("/api/chat"))
	assert.Equal(t, widget.Ready, w.State())
	assert.Contains(t, out.String(), "[success] "+w.Locale().LoginSuccess)
}

func TestREPLKeepsRunningWhenHistoryNeedsLogin(t *testing.T) {
	w, srv := newTestWidget(t)
	srv.FailNext("/api/history", 401, "Authentication required")

	var out bytes.Buffer
	in := &scriptedLines{lines: []string{"/help"}}
	require.NoError(t, NewREPL(w, in, &out).Run(context.Background()))

	assert.Contains(t, out.String(), w.Locale().LoginPrompt)
	assert.Contains(t, out.String(), "/login <email> <password>")
	assert.Equal(t, widget.Unauthorized, w.State())
}
