// Package bankapitest provides an in-memory banking assistant backend for
// tests of the client, the widget and its hosts.
package bankapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
)

const sessionCookie = "session"

type failure struct {
	status  int
	message string
}

// Server mimics the backend contract the widget consumes.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	requireAuth bool
	reply       func(message string) (response, category string)
	users       map[string]string
	names       map[string]string
	sessions    map[string]string
	history     map[string][]bankapi.HistoryItem
	nextID      int64
	calls       map[string]int
	failures    map[string][]failure
	gates       map[string]chan struct{}
	categories  []string
	analytics   *json.RawMessage
	noInit      bool
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		reply: func(message string) (string, string) {
			return "You said: **" + message + "**", "general"
		},
		users:      make(map[string]string),
		names:      make(map[string]string),
		sessions:   make(map[string]string),
		history:    make(map[string][]bankapi.HistoryItem),
		calls:      make(map[string]int),
		failures:   make(map[string][]failure),
		gates:      make(map[string]chan struct{}),
		categories: []string{"general", "cards", "loans"},
	}

	r := chi.NewRouter()
	r.Use(s.track)
	r.Route("/api", func(api chi.Router) {
		api.Post("/init", s.handleInit)
		api.Post("/login", s.handleLogin)
		api.Post("/register", s.handleRegister)
		api.Get("/analytics", s.handleAnalytics)
		api.Group(func(authed chi.Router) {
			authed.Use(s.requireSession)
			authed.Post("/chat", s.handleChat)
			authed.Get("/history", s.handleHistory)
			authed.Post("/clear", s.handleClear)
			authed.Post("/feedback", s.handleFeedback)
			authed.Post("/logout", s.handleLogout)
		})
	})

	s.Server = httptest.NewServer(r)
	return s
}

// SetRequireAuth makes /api/init answer 401 until a user has logged in.
func (s *Server) SetRequireAuth(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = on
}

// SetReply replaces the bot: fn returns the answer and its category.
func (s *Server) SetReply(fn func(message string) (response, category string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// AddUser registers credentials directly.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = password
}

// Seed appends exchanges to the history of owner ("" is the anonymous user).
func (s *Server) Seed(owner string, items ...bankapi.HistoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.nextID++
		if it.ID == 0 {
			it.ID = s.nextID
		}
		s.history[owner] = append(s.history[owner], it)
	}
}

// Calls reports how many requests reached path, e.g. "/api/chat".
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// FailNext makes the next request to path answer with status and message.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, message: message})
}

// Hold blocks requests to path until the returned release func is called.
func (s *Server) Hold(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// ExpireSessions drops every session so the next authenticated call gets 401.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]string)
}

// DisableInit makes /api/init answer 404, like backends without a probe.
func (s *Server) DisableInit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noInit = true
}

// SetAnalytics overrides the analytics payload with raw JSON.
func (s *Server) SetAnalytics(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := json.RawMessage(raw)
	s.analytics = &msg
}

// Feedback returns the stored feedback for a message id, if any.
func (s *Server) Feedback(messageID int64) *bankapi.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, items := range s.history {
		for _, it := range items {
			if it.ID == messageID && it.Feedback != nil {
				fb := *it.Feedback
				return &fb
			}
		}
	}
	return nil
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		gate := s.gates[r.URL.Path]
		var fail *failure
		if queue := s.failures[r.URL.Path]; len(queue) > 0 {
			fail = &queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			respondError(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) owner(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.sessions[c.Value]
	return owner, ok
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := s.owner(r)
		if !ok && !s.implicitSessions() {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !ok {
			s.newSession(w, "")
		}
		r.Header.Set("X-Owner", owner)
		next.ServeHTTP(w, r)
	})
}

// implicitSessions reports whether anonymous sessions open on first use, as
// they do on backends without an init endpoint.
func (s *Server) implicitSessions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noInit && !s.requireAuth
}

func (s *Server) newSession(w http.ResponseWriter, owner string) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = owner
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	noInit := s.noInit
	s.mu.Unlock()
	if noInit {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if owner, ok := s.owner(r); ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":    "session_exists",
			"user_name": nullable(s.userName(owner)),
		})
		return
	}
	s.mu.Lock()
	requireAuth := s.requireAuth
	s.mu.Unlock()
	if requireAuth {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	s.newSession(w, "")
	respondJSON(w, http.StatusOK, map[string]string{"status": "session_created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds bankapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(creds.Email)
	s.mu.Lock()
	pw, ok := s.users[email]
	s.mu.Unlock()
	if !ok || pw != creds.Password {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.newSession(w, email)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds bankapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	email := strings.ToLower(creds.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		respondError(w, http.StatusBadRequest, "User already exists")
		return
	}
	s.users[email] = creds.Password
	if creds.Name != "" {
		s.names[email] = creds.Name
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "Registration successful"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg := strings.TrimSpace(payload.Message)
	if msg == "" {
		respondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	owner := r.Header.Get("X-Owner")

	s.mu.Lock()
	response, category := s.reply(msg)
	s.nextID++
	item := bankapi.HistoryItem{
		ID:        s.nextID,
		Message:   msg,
		Response:  response,
		Timestamp: bankapi.Timestamp{Time: time.Now().UTC()},
		Category:  category,
	}
	s.history[owner] = append(s.history[owner], item)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"response":   item.Response,
		"timestamp":  item.Timestamp.Format("2006-01-02T15:04:05.000000"),
		"message_id": item.ID,
		"category":   nullable(item.Category),
		"user_name":  nullable(s.userName(owner)),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get("X-Owner")
	s.mu.Lock()
	items := append([]bankapi.HistoryItem(nil), s.history[owner]...)
	s.mu.Unlock()
	if items == nil {
		items = []bankapi.HistoryItem{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages":  items,
		"user_name": nullable(s.userName(owner)),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get("X-Owner")
	s.mu.Lock()
	delete(s.history, owner)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req bankapi.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == 0 || req.Rating == 0 {
		respondError(w, http.StatusBadRequest, "Message ID and rating are required")
		return
	}
	owner := r.Header.Get("X-Owner")

	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.history[owner]
	for i := range items {
		if items[i].ID != req.MessageID {
			continue
		}
		items[i].Feedback = &bankapi.Feedback{
			ID:        req.MessageID,
			Rating:    req.Rating,
			Comment:   req.Comment,
			IsHelpful: req.IsHelpful,
			CreatedAt: bankapi.Timestamp{Time: time.Now().UTC()},
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Feedback submitted successfully"})
		return
	}
	respondError(w, http.StatusNotFound, "Message not found")
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analytics != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(*s.analytics)
		return
	}

	var (
		sum, total, helpful int
		counts              = make(map[string]int)
	)
	for _, items := range s.history {
		for _, it := range items {
			counts[it.Category]++
			if it.Feedback == nil {
				continue
			}
			total++
			sum += it.Feedback.Rating
			if it.Feedback.IsHelpful != nil && *it.Feedback.IsHelpful {
				helpful++
			}
		}
	}
	avg := 0.0
	if total > 0 {
		avg = float64(sum) / float64(total)
	}
	stats := make([]bankapi.CategoryStat, 0, len(s.categories))
	for _, name := range s.categories {
		stats = append(stats, bankapi.CategoryStat{Category: name, Count: counts[name]})
	}
	respondJSON(w, http.StatusOK, bankapi.Analytics{
		FeedbackStats: &bankapi.FeedbackStats{AverageRating: avg, TotalFeedback: total, HelpfulCount: helpful},
		CategoryStats: stats,
	})
}

// userName is the display name of a signed-in owner: the registered name,
// else the email. Anonymous owners have none.
func (s *Server) userName(owner string) string {
	if owner == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name := s.names[owner]; name != "" {
		return name
	}
	return owner
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
