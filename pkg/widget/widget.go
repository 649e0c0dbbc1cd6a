// Package widget is the banking assistant chat controller. It owns the
// conversation view model, gates input on the session state and translates
// user actions into backend calls. Front ends render View snapshots and feed
// actions back through the Widget methods or Dispatch.
package widget

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
)

const (
	DefaultSuccessTTL = 3 * time.Second
	DefaultErrorTTL   = 5 * time.Second
)

// API is the backend surface the widget drives. *bankapi.Client implements it.
type API interface {
	Init(ctx context.Context) (*bankapi.InitResponse, error)
	Chat(ctx context.Context, message string) (*bankapi.ChatResponse, error)
	History(ctx context.Context) (*bankapi.HistoryResponse, error)
	ClearHistory(ctx context.Context) error
	SubmitFeedback(ctx context.Context, req bankapi.FeedbackRequest) error
	Analytics(ctx context.Context) (*bankapi.Analytics, error)
	Login(ctx context.Context, creds bankapi.Credentials) error
	Register(ctx context.Context, creds bankapi.Credentials) error
	Logout(ctx context.Context) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer func(prompt string) bool

type Options struct {
	Locale          *i18n.Locale
	Markdown        format.Mode
	AuthEnabled     bool
	FeedbackEnabled bool

	// WelcomeMessage replaces the locale's welcome text when set.
	WelcomeMessage string
	Confirm        Confirmer

	Now        func() time.Time
	AfterFunc  func(d time.Duration, f func())
	SuccessTTL time.Duration
	ErrorTTL   time.Duration
}

type block struct {
	key     string
	kind    BlockKind
	level   NoticeLevel
	text    string
	message *Message
	html    string
}

// Widget is safe for concurrent use. Network calls run without the lock.
type Widget struct {
	api  API
	opts Options
	loc  *i18n.Locale

	mu         sync.Mutex
	state      SessionState
	busy       bool
	authPrompt bool
	blocks     []*block
	seq        uint64
	rev        uint64
	scrollTo   string
	analytics  *AnalyticsPanel
	userName   string
	initNotice string
	subs       map[int]chan struct{}
	nextSub    int

	feedbackLocks sync.Map
}

func New(api API, opts Options) *Widget {
	if opts.Locale == nil {
		opts.Locale = i18n.MustLoad(i18n.DefaultCode)
	}
	if opts.Markdown == "" {
		opts.Markdown = format.ModeLite
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if opts.SuccessTTL <= 0 {
		opts.SuccessTTL = DefaultSuccessTTL
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	return &Widget{
		api:  api,
		opts: opts,
		loc:  opts.Locale,
		subs: make(map[int]chan struct{}),
	}
}

func (w *Widget) Locale() *i18n.Locale { return w.loc }

// State returns the current session state.
func (w *Widget) State() SessionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// CanSend reports whether Send would currently accept input.
func (w *Widget) CanSend() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == Ready && !w.busy
}

// View returns a snapshot of the current view model.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		Revision:     w.rev,
		State:        w.state,
		InputEnabled: w.state == Ready && !w.busy,
		Busy:         w.busy,
		AuthPrompt:   w.authPrompt,
		UserName:     w.userName,
		Locale:       w.loc.Code,
		Placeholder:  w.loc.InputPlaceholder,
		Blocks:       make([]Block, 0, len(w.blocks)),
		ScrollTo:     w.scrollTo,
	}
	var html strings.Builder
	for _, b := range w.blocks {
		out := Block{Key: b.key, Kind: b.kind, Level: b.level, Text: b.text, HTML: b.html}
		if b.message != nil {
			out.Message = b.message.clone()
		}
		v.Blocks = append(v.Blocks, out)
		html.WriteString(b.html)
	}
	v.HTML = html.String()
	if w.analytics != nil {
		panel := *w.analytics
		v.Analytics = &panel
	}
	return v
}

// Subscribe returns a channel that receives a value after view changes.
// Notifications coalesce; read View for the current state.
func (w *Widget) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// changed bumps the revision and wakes subscribers. Callers hold mu.
func (w *Widget) changed() {
	w.rev++
	for _, ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (w *Widget) nextKey(prefix string) string {
	w.seq++
	return prefix + "-" + strconv.FormatUint(w.seq, 10)
}

func (w *Widget) appendBlock(b *block) {
	w.blocks = append(w.blocks, b)
	w.scrollTo = b.key
}

func (w *Widget) appendMessage(m *Message) {
	w.appendBlock(&block{
		key:     w.nextKey("msg"),
		kind:    BlockMessage,
		message: m,
		html:    w.renderMessage(m),
	})
}

func (w *Widget) welcomeText() string {
	if w.opts.WelcomeMessage != "" {
		return w.opts.WelcomeMessage
	}
	return w.loc.Welcome
}

func (w *Widget) hasWelcome() bool {
	for _, b := range w.blocks {
		if b.kind == BlockWelcome {
			return true
		}
	}
	return false
}

// ensureWelcome puts the banner at the top of the pane if it is missing.
func (w *Widget) ensureWelcome() {
	if w.hasWelcome() {
		return
	}
	text := w.welcomeText()
	b := &block{key: "welcome", kind: BlockWelcome, text: text, html: w.renderWelcome(text)}
	w.blocks = append([]*block{b}, w.blocks...)
}

func (w *Widget) showTyping() {
	w.appendBlock(&block{key: w.nextKey("typing"), kind: BlockTyping, html: w.renderTyping()})
}

func (w *Widget) hideTyping() {
	w.filterBlocks(func(b *block) bool { return b.kind != BlockTyping })
}

// keepWelcomeOnly drops everything but the banner.
func (w *Widget) keepWelcomeOnly() {
	w.filterBlocks(func(b *block) bool { return b.kind == BlockWelcome })
}

func (w *Widget) filterBlocks(keep func(*block) bool) {
	kept := w.blocks[:0]
	for _, b := range w.blocks {
		if keep(b) {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(w.blocks); i++ {
		w.blocks[i] = nil
	}
	w.blocks = kept
}

// notify shows a transient notice that removes itself after the TTL of its
// level. Error notices outlive success notices.
func (w *Widget) notify(level NoticeLevel, text string) {
	ttl := w.opts.SuccessTTL
	if level == NoticeError {
		ttl = w.opts.ErrorTTL
	}
	w.notifyFor(level, text, ttl)
}

// notifyFor shows a notice and returns its key; ttl <= 0 keeps it until the
// view is reset.
func (w *Widget) notifyFor(level NoticeLevel, text string, ttl time.Duration) string {
	key := w.nextKey("notice")
	w.appendBlock(&block{key: key, kind: BlockNotice, level: level, text: text, html: renderNotice(level, text)})
	if ttl > 0 {
		w.opts.AfterFunc(ttl, func() { w.dismiss(key) })
	}
	return key
}

// dismiss removes a notice by key. It is a no-op when the notice is gone.
func (w *Widget) dismiss(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removeBlock(key) {
		w.changed()
	}
}

// removeBlock drops the block with key. Callers hold mu.
func (w *Widget) removeBlock(key string) bool {
	for i, b := range w.blocks {
		if b.key == key {
			w.blocks = append(w.blocks[:i], w.blocks[i+1:]...)
			return true
		}
	}
	return false
}

// failInit replaces any earlier init failure notice with a persistent one.
// Callers hold mu.
func (w *Widget) failInit() {
	w.state = Uninitialized
	w.clearInitFailure()
	w.initNotice = w.notifyFor(NoticeError, w.loc.ErrorInit, 0)
}

// clearInitFailure removes the notice left by a failed Start. Callers hold mu.
func (w *Widget) clearInitFailure() {
	if w.initNotice != "" {
		w.removeBlock(w.initNotice)
		w.initNotice = ""
	}
}

// setUser records the signed-in name when the backend reports one. Callers
// hold mu.
func (w *Widget) setUser(name string) {
	if name != "" {
		w.userName = name
	}
}

// setUnauthorized disables input and offers re-authentication.
func (w *Widget) setUnauthorized() {
	w.state = Unauthorized
	w.authPrompt = w.opts.AuthEnabled
}

func (w *Widget) findBotMessage(id int64) *block {
	for _, b := range w.blocks {
		if b.kind == BlockMessage && b.message != nil && b.message.Sender == SenderBot &&
			b.message.ID != nil && *b.message.ID == id {
			return b
		}
	}
	return nil
}

func logFields(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}
