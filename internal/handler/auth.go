// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/webgen-go/internal/auth"
	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/render"
)

// AuthHandler handles builder registration, login, logout and the UI
// language switch.
type AuthHandler struct {
	users           *credential.Store
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(users *credential.Store, renderer *render.Renderer, sm *scs.SessionManager, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		users:           users,
		renderer:        renderer,
		sessionManager:  sm,
		loginProtection: lp,
	}
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)

	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, RouteRoot, i18n.T(lang, "auth.invalid"))
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(middleware.RealmBuilder, username); locked {
			slog.Warn("login attempt on locked account", append(clientAttrs(r), "username", username)...)
			flashError(w, r, h.renderer, RouteRoot, i18n.T(lang, "auth.locked", formatDuration(remaining)))
			return
		}
	}

	profile, err := h.users.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, credential.ErrInvalidCredentials) {
			slog.Error("login failed", "username", username, "error", err)
			flashError(w, r, h.renderer, RouteRoot, storageMessage(lang, err))
			return
		}

		slog.Warn("login failed: invalid credentials", append(clientAttrs(r), "category", "auth", "username", username)...)
		if h.loginProtection != nil {
			if locked, lockDuration := h.loginProtection.RecordFailedAttempt(middleware.RealmBuilder, username); locked {
				slog.Warn("account locked due to failed attempts", "username", username, "duration", lockDuration.String())
				flashError(w, r, h.renderer, RouteRoot, i18n.T(lang, "auth.locked", formatDuration(lockDuration)))
				return
			}
		}
		flashError(w, r, h.renderer, RouteRoot, i18n.T(lang, "auth.invalid"))
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(middleware.RealmBuilder, username)
	}
	if !h.startSession(w, r, profile) {
		return
	}

	slog.Info("user logged in", append(clientAttrs(r), "username", profile.Username, "role", profile.Role)...)
	flashSuccess(w, r, h.renderer, RouteDashboard, i18n.T(lang, "auth.welcome", profile.Username))
}

// Register handles POST /register. New accounts get the User role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)

	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, RouteRoot, i18n.T(lang, "error.internal"))
		return
	}

	profile, err := h.users.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		flashError(w, r, h.renderer, RouteRoot, credentialMessage(lang, err))
		return
	}
	if !h.startSession(w, r, profile) {
		return
	}

	slog.Info("user registered", append(clientAttrs(r), "username", profile.Username)...)
	flashSuccess(w, r, h.renderer, RouteDashboard, i18n.T(lang, "auth.registered"))
}

// Logout handles GET and POST /logout. The whole session is discarded,
// but the language preference survives.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	username := ""
	if actor, ok := middleware.GetActor(r); ok {
		username = actor.Username
	}

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyLang, lang)

	if username != "" {
		slog.Info("user logged out", "username", username)
	}
	flashAndRedirect(w, r, h.renderer, RouteRoot, i18n.T(lang, "auth.logged_out"), render.FlashInfo)
}

// SetLanguage handles GET /lang/{code} and returns to the "next" path.
func (h *AuthHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if i18n.IsSupported(code) {
		h.sessionManager.Put(r.Context(), middleware.SessionKeyLang, code)
	}
	http.Redirect(w, r, safeRedirectTarget(r.URL.Query().Get("next"), RouteRoot), http.StatusSeeOther)
}

// startSession renews the session token and stores profile. It reports
// false after writing an error response.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, profile credential.Profile) bool {
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return false
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyUser, profile)
	return true
}

// credentialMessage maps credential store errors to a translated message.
func credentialMessage(lang string, err error) string {
	switch {
	case errors.Is(err, credential.ErrUsernameRequired):
		return i18n.T(lang, "auth.username_required")
	case errors.Is(err, credential.ErrPasswordTooShort):
		return i18n.T(lang, "auth.password_too_short", auth.MinPasswordLength)
	case errors.Is(err, credential.ErrUsernameTaken):
		return i18n.T(lang, "auth.username_taken")
	case errors.Is(err, credential.ErrNotFound):
		return i18n.T(lang, "admin.user_not_found")
	case errors.Is(err, credential.ErrSelfDelete):
		return i18n.T(lang, "admin.self_delete")
	default:
		slog.Error("credential store error", "error", err)
		return storageMessage(lang, err)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
