// Package channels hosts the chat widget for a browser. Every browser session
// gets its own widget, and with it its own backend session.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/urmatovnaa/bankchat/pkg/config"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/logger"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

const (
	sessionCookie = "bankchat_session"
	sessionTTL    = 24 * time.Hour
	maxEventBytes = 64 << 10
	wsWriteWait   = 10 * time.Second
	wsPingPeriod  = 30 * time.Second

	defaultActionTimeout = 60 * time.Second
)

// WidgetFactory builds a fresh, unstarted widget for a new browser session.
type WidgetFactory func() (*widget.Widget, error)

type browserSession struct {
	widget   *widget.Widget
	expires  time.Time
	starting bool
}

type Option func(*WebChatChannel)

// WithActionTimeout bounds widget actions started by a request. Actions run
// detached from the request, so a reload does not cancel them.
func WithActionTimeout(d time.Duration) Option {
	return func(c *WebChatChannel) {
		if d > 0 {
			c.actionTimeout = d
		}
	}
}

type WebChatChannel struct {
	config   config.WebChatConfig
	locale   *i18n.Locale
	factory  WidgetFactory
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	sessions map[string]*browserSession
	running  bool
	mu       sync.RWMutex

	actionTimeout time.Duration
}

type eventResponse struct {
	OK      bool        `json:"ok"`
	Skipped bool        `json:"skipped,omitempty"`
	Error   string      `json:"error,omitempty"`
	View    widget.View `json:"view"`
}

func NewWebChatChannel(cfg config.WebChatConfig, loc *i18n.Locale, factory WidgetFactory, opts ...Option) (*WebChatChannel, error) {
	if factory == nil {
		return nil, errors.New("webchat: widget factory is required")
	}
	if loc == nil {
		loc = i18n.MustLoad(i18n.DefaultCode)
	}
	c := &WebChatChannel{
		config:        cfg,
		locale:        loc,
		factory:       factory,
		sessions:      make(map[string]*browserSession),
		upgrader:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		actionTimeout: defaultActionTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Handler returns the channel's routes.
func (c *WebChatChannel) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/", c.handleUI)
	r.Route("/widget", func(wr chi.Router) {
		wr.Get("/state", c.handleState)
		wr.Post("/event", c.handleEvent)
		wr.Get("/ws", c.handleWS)
	})
	return r
}

// Start listens on the configured address and serves in the background.
func (c *WebChatChannel) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webchat: listen %s: %w", addr, err)
	}

	c.mu.Lock()
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	c.running = true
	srv := c.server
	c.mu.Unlock()

	logger.InfoCF("channels", "WebChat started", map[string]interface{}{"addr": ln.Addr().String()})

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("channels", "WebChat server error", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (c *WebChatChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.running = false
	srv := c.server
	c.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (c *WebChatChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Addr is the bound address once started, e.g. for port 0.
func (c *WebChatChannel) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// session returns the caller's widget, creating one for a new or expired
// cookie. A widget whose start failed is started again, which is what a page
// reload does.
func (c *WebChatChannel) session(w http.ResponseWriter, r *http.Request) (*widget.Widget, error) {
	now := time.Now()
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		c.mu.Lock()
		s, ok := c.sessions[cookie.Value]
		if ok && now.Before(s.expires) {
			s.expires = now.Add(sessionTTL)
			c.mu.Unlock()
			c.ensureStarted(r, s)
			return s.widget, nil
		}
		delete(c.sessions, cookie.Value)
		c.mu.Unlock()
	}

	wd, err := c.factory()
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	s := &browserSession{widget: wd, expires: now.Add(sessionTTL)}

	c.mu.Lock()
	for k, old := range c.sessions {
		if now.After(old.expires) {
			delete(c.sessions, k)
		}
	}
	c.sessions[token] = s
	count := len(c.sessions)
	c.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL / time.Second),
	})
	logger.InfoCF("channels", "WebChat session opened", map[string]interface{}{
		"remote":   r.RemoteAddr,
		"sessions": count,
	})

	c.ensureStarted(r, s)
	return wd, nil
}

// ensureStarted runs Start for a widget that has not come up yet. Concurrent
// requests for the same session do not start it twice.
func (c *WebChatChannel) ensureStarted(r *http.Request, s *browserSession) {
	c.mu.Lock()
	if s.starting || s.widget.State() != widget.Uninitialized {
		c.mu.Unlock()
		return
	}
	s.starting = true
	c.mu.Unlock()

	ctx, cancel := c.actionContext(r)
	defer cancel()
	// Start failures are shown in the widget itself.
	_ = s.widget.Start(ctx)

	c.mu.Lock()
	s.starting = false
	c.mu.Unlock()
}

// actionContext keeps the request's values but not its cancellation.
func (c *WebChatChannel) actionContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), c.actionTimeout)
}

func (c *WebChatChannel) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, renderPage(c.locale))
}

func (c *WebChatChannel) handleState(w http.ResponseWriter, r *http.Request) {
	wd, err := c.session(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "widget unavailable")
		logger.ErrorCF("channels", "Widget creation failed", map[string]interface{}{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, wd.View())
}

func (c *WebChatChannel) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev widget.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event")
		return
	}
	wd, err := c.session(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "widget unavailable")
		return
	}

	ctx, cancel := c.actionContext(r)
	defer cancel()
	resp := eventResponse{OK: true}
	if err := wd.Dispatch(ctx, ev); err != nil {
		resp.OK = false
		if errors.Is(err, widget.ErrSkipped) {
			resp.Skipped = true
		} else {
			resp.Error = err.Error()
		}
		logger.DebugCF("channels", "Event not applied", map[string]interface{}{
			"kind":  ev.Kind,
			"error": err.Error(),
		})
	}
	resp.View = wd.View()
	respondJSON(w, http.StatusOK, resp)
}

// handleWS pushes a view snapshot on every change and accepts events from
// the page. Only the write loop writes to the connection.
func (c *WebChatChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	wd, err := c.session(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "widget unavailable")
		return
	}
	// The upgrade writes only the headers it is given.
	var header http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}
	conn, err := c.upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.WarnCF("channels", "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	updates, cancel := wd.Subscribe()
	defer cancel()

	connCtx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		defer stop()
		conn.SetReadLimit(maxEventBytes)
		for {
			var ev widget.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			go func() {
				ctx, release := c.actionContext(r)
				defer release()
				if err := wd.Dispatch(ctx, ev); err != nil && !errors.Is(err, widget.ErrSkipped) {
					logger.DebugCF("channels", "Event failed", map[string]interface{}{
						"kind":  ev.Kind,
						"error": err.Error(),
					})
				}
			}()
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	send := func() error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(wd.View())
	}
	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-connCtx.Done():
			return
		case <-updates:
			if err := send(); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
