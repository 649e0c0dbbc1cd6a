// Package tui hosts the chat widget in a terminal.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/logger"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

const (
	pageMain      = "main"
	pageConfirm   = "confirm"
	pageAnalytics = "analytics"
)

type App struct {
	w      *widget.Widget
	loc    *i18n.Locale
	app    *tview.Application
	pages  *tview.Pages
	conv   *tview.TextView
	input  *tview.InputField
	status *tview.TextView

	ctx   context.Context
	flash string
}

func New(w *widget.Widget) *App {
	a := &App{
		w:      w,
		loc:    w.Locale(),
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		conv:   tview.NewTextView(),
		input:  tview.NewInputField(),
		status: tview.NewTextView(),
		ctx:    context.Background(),
	}

	a.conv.SetDynamicColors(true).SetWordWrap(true).SetScrollable(true)
	a.conv.SetBorder(true).SetTitle(" " + a.loc.SenderBot + " ")

	a.status.SetDynamicColors(true)

	a.input.SetLabel("> ").SetPlaceholder(a.loc.InputPlaceholder).SetFieldBackgroundColor(tcell.ColorDefault)
	a.input.SetDoneFunc(a.onEnter)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.conv, 0, 1, false).
		AddItem(a.status, 1, 0, false).
		AddItem(a.input, 1, 0, true)
	a.pages.AddPage(pageMain, layout, true, true)
	return a
}

// Run starts the widget and blocks until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	w := a.w

	updates, cancel := w.Subscribe()
	defer cancel()
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				a.app.Stop()
				return
			case <-updates:
				a.app.QueueUpdateDraw(a.refresh)
			}
		}
	}()

	go func() {
		if err := w.Start(ctx); err != nil {
			logger.ErrorCF("tui", "Widget start failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.refresh()
	return a.app.SetRoot(a.pages, true).EnableMouse(true).Run()
}

// refresh redraws from the widget's current view. Runs on the UI goroutine.
func (a *App) refresh() {
	v := a.w.View()
	a.conv.SetText(RenderView(v, a.loc, time.Now()))
	a.conv.ScrollToEnd()

	label, state := "> ", v.State.String()
	switch {
	case v.Busy:
		label, state = "… ", a.loc.Typing
	case v.State == widget.Unauthorized:
		label = "# "
		if v.AuthPrompt {
			state = a.loc.LoginPrompt + " (/login, /register)"
		}
	}
	a.input.SetLabel(label)
	if v.UserName != "" {
		state = v.UserName + " · " + state
	}
	line := "[gray]" + tview.Escape(state) + "[-]"
	if a.flash != "" {
		line += "  [yellow]" + tview.Escape(a.flash) + "[-]"
	}
	a.status.SetText(line)

	switch {
	case v.Analytics != nil && !a.pages.HasPage(pageAnalytics):
		modal := tview.NewModal().
			SetText(RenderAnalytics(*v.Analytics, a.loc)).
			AddButtons([]string{"OK"}).
			SetDoneFunc(func(int, string) { a.w.CloseAnalytics() })
		a.pages.AddPage(pageAnalytics, modal, true, true)
	case v.Analytics == nil && a.pages.HasPage(pageAnalytics):
		a.pages.RemovePage(pageAnalytics)
		a.app.SetFocus(a.input)
	}
}

func (a *App) onEnter(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	text := a.input.GetText()
	trimmed := strings.TrimSpace(text)
	a.flash = ""

	if strings.HasPrefix(trimmed, "/") {
		a.input.SetText("")
		a.runCommand(trimmed)
		return
	}
	if trimmed == "" || !a.w.CanSend() {
		return
	}
	a.input.SetText("")
	go a.background("send", func(ctx context.Context) error { return a.w.Send(ctx, text) })
}

func (a *App) runCommand(line string) {
	cmd, err := parseCommand(line)
	if err != nil {
		a.flash = err.Error()
		a.refresh()
		return
	}

	switch cmd.kind {
	case cmdQuit:
		a.app.Stop()
	case cmdHelp:
		a.showText(helpText)
	case cmdCopy:
		reply := lastReply(a.w.View())
		if reply == "" {
			return
		}
		if err := clipboard.WriteAll(reply); err != nil {
			a.flash = err.Error()
		} else {
			a.flash = "copied"
		}
		a.refresh()
	case cmdClear:
		go a.background("clear", func(ctx context.Context) error { return a.w.Clear(ctx, a.confirm) })
	case cmdRate:
		go a.background("rate", func(ctx context.Context) error { return a.w.RateMessage(ctx, cmd.messageID, cmd.rating) })
	case cmdHelpful, cmdUnhelpful:
		helpful := cmd.kind == cmdHelpful
		go a.background("helpful", func(ctx context.Context) error { return a.w.MarkHelpful(ctx, cmd.messageID, helpful) })
	case cmdStats:
		go a.background("analytics", a.w.OpenAnalytics)
	case cmdLogin:
		go a.background("login", func(ctx context.Context) error { return a.w.Login(ctx, cmd.email, cmd.password) })
	case cmdRegister:
		go a.background("register", func(ctx context.Context) error { return a.w.Register(ctx, "", cmd.email, cmd.password) })
	case cmdLogout:
		go a.background("logout", a.w.Logout)
	}
}

// background runs a widget action off the UI goroutine. Failures are already
// shown by the widget as notices.
func (a *App) background(op string, fn func(ctx context.Context) error) {
	if err := fn(a.ctx); err != nil && !errors.Is(err, widget.ErrSkipped) {
		logger.DebugCF("tui", "Action failed", map[string]interface{}{"op": op, "error": err.Error()})
	}
}

// confirm asks with a modal and waits for the answer. It must not be called
// on the UI goroutine.
func (a *App) confirm(prompt string) bool {
	answer := make(chan bool, 1)
	a.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(prompt).
			AddButtons([]string{"OK", "Cancel"}).
			SetDoneFunc(func(index int, _ string) {
				a.pages.RemovePage(pageConfirm)
				a.app.SetFocus(a.input)
				answer <- index == 0
			})
		a.pages.AddPage(pageConfirm, modal, true, true)
	})
	select {
	case ok := <-answer:
		return ok
	case <-a.ctx.Done():
		return false
	}
}

func (a *App) showText(text string) {
	modal := tview.NewModal().SetText(text).AddButtons([]string{"OK"})
	modal.SetDoneFunc(func(int, string) {
		a.pages.RemovePage("text")
		a.app.SetFocus(a.input)
	})
	a.pages.AddPage("text", modal, true, true)
}

// lastReply returns the newest bot message text.
func lastReply(v widget.View) string {
	msgs := v.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == widget.SenderBot {
			return msgs[i].Text
		}
	}
	return ""
}
