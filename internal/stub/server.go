// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the stub backend.
type Options struct {
	// Secret signs session tokens. Empty generates a random one.
	Secret string

	// Users maps usernames to passwords. Empty means demo/demo.
	Users map[string]string

	// TokenTTL is the session token lifetime. Zero means 5 hours.
	TokenTTL time.Duration

	// Latency delays every chat and upload answer.
	Latency time.Duration
}

// =============================================================================
// SERVER
// =============================================================================

type chatRecord struct {
	ID    int
	Turns []model.WireTurn
}

type userState struct {
	chats  []*chatRecord
	nextID int
	table  *Table
}

// Server is an in-memory chat backend answering every client endpoint.
type Server struct {
	secret  []byte
	users   map[string]string
	ttl     time.Duration
	latency time.Duration

	mu      sync.Mutex
	state   map[string]*userState
	revoked map[string]bool
}

// New creates a stub server.
func New(opts Options) *Server {
	secret := opts.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	users := opts.Users
	if len(users) == 0 {
		users = map[string]string{"demo": "demo"}
	}
	ttl := opts.TokenTTL
	if ttl == 0 {
		ttl = 5 * time.Hour
	}
	return &Server{
		secret:  []byte(secret),
		users:   users,
		ttl:     ttl,
		latency: opts.Latency,
		state:   make(map[string]*userState),
		revoked: make(map[string]bool),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/logout", s.handleLogout)
		r.Get("/validate-session", s.handleValidate)
		r.Post("/chat-with-ai", s.handleChat)
		r.Post("/chat", s.handleChat)
		r.Post("/upload", s.handleUpload)
		r.Post("/remove-session", s.handleRemoveSession)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", s.handleListChats)
			r.Post("/", s.handleCreateChat)
			r.Get("/{id}", s.handleGetChat)
			r.Patch("/{id}", s.handleUpdateChat)
		})
	})
	return r
}

// =============================================================================
// RESPONSES AND MIDDLEWARE
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, answer interface{}) {
	result := "success"
	if status >= 400 {
		result = "failed"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": result,
		"answer": answer,
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.InfoCF("stub", "Request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		})
	})
}

type ctxKey string

const (
	userKey ctxKey = "user"
	jtiKey  ctxKey = "jti"
)

// authenticate checks the bearer token and puts the username in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeJSON(w, http.StatusUnauthorized, "Session expired")
			} else {
				writeJSON(w, http.StatusUnauthorized, "Unauthorized")
			}
			return
		}

		user, _ := claims.GetSubject()
		jti, _ := claims["jti"].(string)
		s.mu.Lock()
		revoked := s.revoked[jti]
		s.mu.Unlock()
		if user == "" || revoked {
			writeJSON(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, jtiKey, jti)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// user returns the state for the authenticated user, creating it.
func (s *Server) user(r *http.Request) *userState {
	name, _ := r.Context().Value(userKey).(string)
	st, ok := s.state[name]
	if !ok {
		st = &userState{nextID: 1}
		s.state[name] = st
	}
	return st
}

// IssueToken signs a session token for username.
func (s *Server) IssueToken(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) wait(ctx context.Context) {
	if s.latency <= 0 {
		return
	}
	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
	}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid JSON format in request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if pw, ok := s.users[req.Username]; !ok || pw != req.Password {
		writeJSON(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token, err := s.IssueToken(req.Username, s.ttl)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	jti, _ := r.Context().Value(jtiKey).(string)
	s.mu.Lock()
	s.revoked[jti] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, "Logged out")
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "Session valid")
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.user(r)
	had := st.table != nil
	st.table = nil
	s.mu.Unlock()

	if !had {
		writeJSON(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, "File deleted successfully")
}

// =============================================================================
// CHAT HANDLERS
// =============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid JSON format in request body")
		return
	}
	s.wait(r.Context())

	switch req.Type {
	case api.ModePhi:
		writeJSON(w, http.StatusOK, Advise(req.Query, req.PrevChat))
	case api.ModeTapas:
		s.mu.Lock()
		table := s.user(r).table
		s.mu.Unlock()
		if table == nil {
			writeJSON(w, http.StatusNotFound, "Data file not found")
			return
		}
		writeJSON(w, http.StatusOK, table.Answer(req.Query))
	default:
		writeJSON(w, http.StatusBadRequest, "Invalid chat type: "+string(req.Type))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.MaxUploadSize+64<<10)
	if err := r.ParseMultipartForm(api.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "Failed to retrieve uploaded file")
		return
	}
	defer file.Close()

	if err := api.ValidateUpload(header.Filename, header.Size); err != nil {
		status := http.StatusUnsupportedMediaType
		if errors.Is(err, api.ErrUploadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, "Failed to read file content")
		return
	}
	table, err := ParseTable(string(data))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, "Failed to process file content: "+err.Error())
		return
	}
	s.wait(r.Context())

	s.mu.Lock()
	s.user(r).table = table
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, table.Summary())
}

// =============================================================================
// CHAT RECORD HANDLERS
// =============================================================================

type chatSummary struct {
	ID      int    `json:"chatID"`
	Content string `json:"content"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	out := make([]chatSummary, 0, len(st.chats))
	for _, c := range st.chats {
		out = append(out, chatSummary{ID: c.ID, Content: preview(c.Turns)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatHistory []model.WireTurn `json:"chat_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.ChatHistory) == 0 {
		writeJSON(w, http.StatusBadRequest, "chat_history is required")
		return
	}

	s.mu.Lock()
	st := s.user(r)
	rec := &chatRecord{ID: st.nextID, Turns: body.ChatHistory}
	st.nextID++
	st.chats = append(st.chats, rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec.ID)
}

func (s *Server) findChat(r *http.Request) (*chatRecord, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return nil, false
	}
	for _, c := range s.user(r).chats {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.findChat(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, "Chat history not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.Turns)
}

// handleUpdateChat writes entries at their positions: an id equal to an
// existing position replaces it, the next position appends.
func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatHistory []model.WireTurn `json:"chat_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid JSON format in request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.findChat(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, "Chat history not found")
		return
	}
	for _, e := range body.ChatHistory {
		idx := e.ID - 1
		switch {
		case idx >= 0 && idx < len(rec.Turns):
			rec.Turns[idx] = e
		case idx == len(rec.Turns):
			rec.Turns = append(rec.Turns, e)
		default:
			writeJSON(w, http.StatusBadRequest, "entry "+strconv.Itoa(e.ID)+" leaves a gap in the chat")
			return
		}
	}
	writeJSON(w, http.StatusOK, "Chat history updated")
}

// preview is the first few words of the first answer after the greeting.
func preview(turns []model.WireTurn) string {
	for i, t := range turns {
		if i == 0 || t.Role != model.RoleAssistant || t.Type != model.TypeText {
			continue
		}
		var text string
		if err := json.Unmarshal(t.Content, &text); err != nil {
			continue
		}
		words := strings.Fields(text)
		if len(words) > 6 {
			return strings.Join(words[:6], " ") + "..."
		}
		return strings.Join(words, " ")
	}
	return "New chat"
}
