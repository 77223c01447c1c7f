// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/session"
	"github.com/jeranaias/wattchat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoSession means no token is stored; the user must log in.
	ErrNoSession = errors.New("not logged in")

	// ErrSessionExpired means the stored token was rejected or has run out.
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrMissingCredentials is returned for an empty username or password.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrTooManyAttempts is returned when login attempts come too fast.
	ErrTooManyAttempts = errors.New("too many login attempts, wait a moment")
)

// =============================================================================
// GATE
// =============================================================================

// Client is the part of the API client the gate talks to.
type Client interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
	ValidateSession(ctx context.Context) error
	RemoveSession(ctx context.Context) error
	SetToken(token string)
}

// Options tunes the gate.
type Options struct {
	// VerifyRemote asks the backend to confirm the token in Check.
	VerifyRemote bool

	// AttemptsPerMinute limits Login calls. Zero means 5.
	AttemptsPerMinute int
}

// Gate decides whether the chat screen may be shown and owns the stored
// session token.
type Gate struct {
	store    storage.Storage
	client   Client
	sessions *session.Manager
	opts     Options
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewGate creates a gate over store. sessions may be nil, in which case
// logout leaves the chat state alone.
func NewGate(store storage.Storage, client Client, sessions *session.Manager, opts Options) *Gate {
	perMin := opts.AttemptsPerMinute
	if perMin <= 0 {
		perMin = 5
	}
	return &Gate{
		store:    store,
		client:   client,
		sessions: sessions,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		now:      time.Now,
	}
}

// Token returns the stored token or ErrNoSession.
func (g *Gate) Token(ctx context.Context) (string, error) {
	token, err := g.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && token == "") {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Check looks for a usable token and hands it to the client. A token whose
// JWT expiry has passed, or that the backend rejects when remote checks are
// on, is removed and reported as ErrSessionExpired.
func (g *Gate) Check(ctx context.Context) (string, error) {
	token, err := g.Token(ctx)
	if err != nil {
		return "", err
	}

	if exp, ok := TokenExpiry(token); ok && !g.now().Before(exp) {
		logger.InfoCF("auth", "Stored token has expired", map[string]interface{}{
			"expired_at": exp.Format(time.RFC3339),
		})
		g.discard(ctx, "expired")
		return "", ErrSessionExpired
	}

	g.client.SetToken(token)

	if g.opts.VerifyRemote {
		if err := g.client.ValidateSession(ctx); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				g.discard(ctx, "rejected")
				return "", ErrSessionExpired
			}
			// The backend being down is not the user's fault; let them in
			// and let the first real call decide.
			logger.WarnCF("auth", "Could not validate session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return token, nil
}

// Login exchanges credentials for a token and stores it.
func (g *Gate) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	if !g.limiter.Allow() {
		return ErrTooManyAttempts
	}

	token, err := g.client.Login(ctx, username, password)
	if err != nil {
		logger.WarnCF("auth", "Login failed", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return err
	}
	if err := g.store.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	g.client.SetToken(token)
	logger.InfoCF("auth", "Logged in", map[string]interface{}{
		"username": username,
	})
	return nil
}

// Logout tells the backend to drop the uploaded data and the session, then
// removes the token and chat state locally. Remote failures are logged;
// the local teardown always happens.
func (g *Gate) Logout(ctx context.Context) error {
	if token, err := g.Token(ctx); err == nil {
		g.client.SetToken(token)
		if err := g.client.RemoveSession(ctx); err != nil && !errors.Is(err, api.ErrNotFound) {
			logger.WarnCF("auth", "Logout step failed", map[string]interface{}{
				"step":  "remove-session",
				"error": err.Error(),
			})
		}
		if err := g.client.Logout(ctx); err != nil {
			logger.WarnCF("auth", "Logout step failed", map[string]interface{}{
				"step":  "logout",
				"error": err.Error(),
			})
		}
	}

	var errs []error
	if err := g.Invalidate(ctx); err != nil {
		errs = append(errs, err)
	}
	if g.sessions != nil {
		if err := g.sessions.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate forgets the token locally.
func (g *Gate) Invalidate(ctx context.Context) error {
	g.client.SetToken("")
	return g.store.Remove(ctx, storage.KeyToken)
}

// discard invalidates a token Check refused. A failed removal is logged;
// the caller still reports the session as expired.
func (g *Gate) discard(ctx context.Context, reason string) {
	if err := g.Invalidate(ctx); err != nil {
		logger.WarnCF("auth", "Failed to remove stale token", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
	}
}

// LoggedIn reports whether a token is stored, without validating it.
func (g *Gate) LoggedIn(ctx context.Context) bool {
	_, err := g.Token(ctx)
	return err == nil
}

// =============================================================================
// TOKEN INSPECTION
// =============================================================================

// TokenExpiry reads the exp claim of a JWT without verifying the
// signature. ok is false for tokens that are not JWTs or carry no expiry.
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenSubject reads the sub claim of a JWT without verifying the
// signature. It returns "" when there is none.
func TokenSubject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
