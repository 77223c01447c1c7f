// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/model"
)

// Configuration constants for the chatbot backend.
const (
	// DefaultBaseURL is where the backend listens in development.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultChatPath is the chat completion endpoint.
	DefaultChatPath = "/chat-with-ai"

	// DefaultTimeout bounds every request. Model answers can be slow.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// sharedTransport is reused by every client for connection pooling.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 5,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnauthorized indicates a missing, invalid or expired session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested chat does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoToken is returned when an authenticated call is made before login.
	ErrNoToken = errors.New("no session token")
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface. The message is the backend's
// answer text so it can be shown to the user as-is.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.Status)
}

// Is maps status codes to the sentinel errors.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chatbot backend. It is safe for concurrent use.
type Client struct {
	baseURL  string
	chatPath string
	http     *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		chatPath: DefaultChatPath,
		http: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
	}
}

// WithChatPath sets the chat completion path ("/chat-with-ai" or "/chat").
func (c *Client) WithChatPath(path string) *Client {
	if path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.chatPath = path
	}
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token sent with authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/login", LoginRequest{Username: username, Password: password}, false)
	if err != nil {
		return "", err
	}
	token := env.AnswerString()
	if token == "" {
		return "", errors.New("login succeeded but no token was returned")
	}
	return token, nil
}

// Logout invalidates the session token on the server.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/logout", nil, true)
	return err
}

// ValidateSession checks the token against the server.
func (c *Client) ValidateSession(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodGet, "/validate-session", nil, true)
	return err
}

// RemoveSession drops the uploaded data file held for this user.
func (c *Client) RemoveSession(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/remove-session", nil, true)
	return err
}

// =============================================================================
// CHAT ENDPOINTS
// =============================================================================

// Chat sends a query and returns the assistant answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	env, err := c.doJSON(ctx, http.MethodPost, c.chatPath, req, true)
	if err != nil {
		return "", err
	}
	return env.AnswerString(), nil
}

// Upload sends a file for analysis as multipart field "file" and returns
// the assistant answer.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if n > MaxUploadSize {
		return "", fmt.Errorf("%w (%s)", ErrUploadTooLarge, name)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	env, err := c.do(ctx, http.MethodPost, "/upload", &buf, mw.FormDataContentType(), true)
	if err != nil {
		return "", err
	}
	return env.AnswerString(), nil
}

// ListChats returns the user's stored chats.
func (c *Client) ListChats(ctx context.Context) ([]ChatSummary, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/chats", nil, true)
	if err != nil {
		return nil, err
	}
	var chats []ChatSummary
	if len(env.Answer) == 0 || string(env.Answer) == "null" {
		return chats, nil
	}
	if err := json.Unmarshal(env.Answer, &chats); err != nil {
		return nil, fmt.Errorf("failed to parse chat list: %w", err)
	}
	return chats, nil
}

// GetChat loads a stored chat as a history.
func (c *Client) GetChat(ctx context.Context, id string) (model.History, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/chats/"+url.PathEscape(id), nil, true)
	if err != nil {
		return nil, err
	}
	var entries []model.WireTurn
	if err := json.Unmarshal(env.Answer, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse chat history: %w", err)
	}
	return model.FromWire(entries)
}

// CreateChat stores h as a new chat and returns its id.
func (c *Client) CreateChat(ctx context.Context, h model.History) (string, error) {
	wire, err := h.Wire(0)
	if err != nil {
		return "", err
	}
	env, err := c.doJSON(ctx, http.MethodPost, "/chats", chatRecord{ChatHistory: wire}, true)
	if err != nil {
		return "", err
	}
	id := env.AnswerString()
	if id == "" {
		return "", errors.New("chat created but no id was returned")
	}
	return id, nil
}

// UpdateChat appends turns to a stored chat. offset is the number of turns
// that precede them so their positional ids line up.
func (c *Client) UpdateChat(ctx context.Context, id string, turns model.History, offset int) error {
	wire, err := turns.Wire(offset)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPatch, "/chats/"+url.PathEscape(id), chatRecord{ChatHistory: wire}, true)
	return err
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, auth bool) (*Envelope, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, auth)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, auth bool) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		token := c.Token()
		if token == "" {
			return nil, ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.WarnCF("api", "Request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	logger.DebugCF("api", "Response received", map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, data)
	}

	var env Envelope
	if len(bytes.TrimSpace(data)) == 0 {
		return &env, nil
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &env, nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorFromResponse prefers the envelope answer and falls back to the raw
// body, which is what plain http.Error responses carry.
func errorFromResponse(status int, body []byte) error {
	var env Envelope
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil {
		msg = env.AnswerString()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}
