package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

// LineReader is the input side of a line session. readline.Instance
// satisfies it.
type LineReader interface {
	ReadLine() (string, error)
}

// REPL drives the widget one line at a time for terminals without a full
// screen. Every action runs to completion before the next prompt.
type REPL struct {
	w    *widget.Widget
	loc  *i18n.Locale
	in   LineReader
	out  io.Writer
	seen map[string]bool
}

func NewREPL(w *widget.Widget, in LineReader, out io.Writer) *REPL {
	return &REPL{w: w, loc: w.Locale(), in: in, out: out, seen: make(map[string]bool)}
}

// Confirm asks on the same line reader. Only "y" and "yes" agree.
func (r *REPL) Confirm(prompt string) bool {
	fmt.Fprintf(r.out, "%s [y/N] ", prompt)
	line, err := r.in.ReadLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Run starts the widget and reads lines until EOF, /quit or ctx ends.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.w.Start(ctx); err != nil {
		r.flush(true)
		return err
	}
	r.flush(true)
	r.prompt()

	for ctx.Err() == nil {
		line, err := r.in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit := r.command(ctx, line)
			if quit {
				return nil
			}
		} else if r.w.CanSend() {
			_ = r.w.Send(ctx, line)
		}
		r.flush(false)
		r.prompt()
	}
	return ctx.Err()
}

func (r *REPL) prompt() {
	v := r.w.View()
	if v.State == widget.Unauthorized && v.AuthPrompt {
		fmt.Fprintln(r.out, r.loc.LoginPrompt+" (/login, /register)")
	}
}

func (r *REPL) command(ctx context.Context, line string) (quit bool) {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return false
	}

	switch cmd.kind {
	case cmdQuit:
		return true
	case cmdHelp:
		fmt.Fprintln(r.out, helpText)
	case cmdCopy:
		if reply := lastReply(r.w.View()); reply != "" {
			if err := clipboard.WriteAll(reply); err != nil {
				fmt.Fprintln(r.out, err)
			}
		}
	case cmdClear:
		_ = r.w.Clear(ctx, r.Confirm)
	case cmdRate:
		_ = r.w.RateMessage(ctx, cmd.messageID, cmd.rating)
	case cmdHelpful, cmdUnhelpful:
		_ = r.w.MarkHelpful(ctx, cmd.messageID, cmd.kind == cmdHelpful)
	case cmdStats:
		if err := r.w.OpenAnalytics(ctx); err == nil {
			if panel := r.w.View().Analytics; panel != nil {
				fmt.Fprintln(r.out, RenderAnalytics(*panel, r.loc))
			}
			r.w.CloseAnalytics()
		}
	case cmdLogin:
		if err := r.w.Login(ctx, cmd.email, cmd.password); err == nil {
			r.flush(true)
		}
	case cmdRegister:
		_ = r.w.Register(ctx, "", cmd.email, cmd.password)
	case cmdLogout:
		_ = r.w.Logout(ctx)
	}
	return false
}

// flush prints blocks not printed before. User bubbles are the user's own
// input and only show when replaying history.
func (r *REPL) flush(history bool) {
	for _, b := range r.w.View().Blocks {
		if r.seen[b.Key] {
			continue
		}
		switch b.Kind {
		case widget.BlockWelcome:
			fmt.Fprintln(r.out, format.PlainText(b.Text))
		case widget.BlockNotice:
			fmt.Fprintf(r.out, "[%s] %s\n", b.Level, b.Text)
		case widget.BlockMessage:
			if b.Message == nil {
				continue
			}
			if b.Message.Sender == widget.SenderUser && !history {
				break
			}
			fmt.Fprintln(r.out, r.plainMessage(*b.Message))
		default:
			continue
		}
		r.seen[b.Key] = true
	}
}

func (r *REPL) plainMessage(m widget.Message) string {
	var sb strings.Builder
	if m.Sender == widget.SenderUser {
		sb.WriteString(r.loc.SenderUser)
	} else {
		sb.WriteString(r.loc.SenderBot)
	}
	if m.ID != nil {
		fmt.Fprintf(&sb, " #%d", *m.ID)
	}
	if m.Category != "" {
		fmt.Fprintf(&sb, " (%s)", m.Category)
	}
	sb.WriteString(": ")
	sb.WriteString(format.PlainText(m.Text))
	return sb.String()
}
