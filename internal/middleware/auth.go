// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/render"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyActor       ContextKey = "actor"
	ContextKeyRequestPath ContextKey = "request_path"
)

// Session keys for the signed-in builder account and UI preferences.
const (
	SessionKeyUser = "user"
	SessionKeyLang = "lang"
)

// UserFinder looks up the stored account behind a session profile.
type UserFinder interface {
	Find(ctx context.Context, username string) (credential.User, error)
}

// LoadActor creates middleware that re-reads the signed-in account on every
// request and puts its current profile in the request context, so role
// changes apply at once. A session whose account was deleted is destroyed
// and the request continues anonymously. Requests without a session pass
// through.
func LoadActor(sm *scs.SessionManager, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := sm.Get(ctx, SessionKeyUser).(credential.Profile)
			if !ok || actor.Username == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.Find(ctx, actor.Username)
			if errors.Is(err, credential.ErrNotFound) {
				endSession(r, sm, actor.Username)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				slog.Error("failed to load session account", "username", actor.Username, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			fresh := user.Profile()
			if fresh.Role != actor.Role || fresh.Username != actor.Username || !slices.Equal(fresh.OwnedPages, actor.OwnedPages) {
				sm.Put(ctx, SessionKeyUser, fresh)
			}
			next.ServeHTTP(w, r.WithContext(WithActor(ctx, fresh)))
		})
	}
}

// endSession destroys the session of a deleted account, keeping the UI
// language and leaving a flash for the next page.
func endSession(r *http.Request, sm *scs.SessionManager, username string) {
	ctx := r.Context()
	lang := GetLang(r)
	stored := sm.GetString(ctx, SessionKeyLang)
	if err := sm.Destroy(ctx); err != nil {
		slog.Error("failed to destroy session", "username", username, "error", err)
		return
	}
	if stored != "" {
		sm.Put(ctx, SessionKeyLang, stored)
	}
	sm.Put(ctx, render.SessionKeyFlash, i18n.T(lang, "auth.account_gone"))
	sm.Put(ctx, render.SessionKeyFlashType, render.FlashError)
	slog.Warn("session ended for deleted account", "category", "auth", "username", username)
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor credential.Profile) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// GetActor returns the signed-in profile from the request context.
func GetActor(r *http.Request) (credential.Profile, bool) {
	actor, ok := r.Context().Value(ContextKeyActor).(credential.Profile)
	return actor, ok
}

// RequireLogin redirects anonymous requests to the builder start page.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetActor(r); !ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole creates middleware that admits only actors holding one of
// roles. Anonymous requests are redirected like RequireLogin; signed-in
// actors with another role get 403.
func RequireRole(roles ...credential.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r)
			if !ok {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			if !slices.Contains(roles, actor.Role) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"username", actor.Username,
					"user_role", actor.Role,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(credential.RoleAdmin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(credential.RoleAdmin)
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in error logs.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, ok := ctx.Value(ContextKeyRequestPath).(string)
	if !ok {
		return ""
	}
	return path
}

// globalSessionManager is set by SetSessionManager and used by GetLang.
var globalSessionManager *scs.SessionManager

// SetSessionManager sets the session manager consulted for the UI language.
// This should be called during application initialization.
func SetSessionManager(sm *scs.SessionManager) {
	globalSessionManager = sm
}

// GetLang returns the UI language for the request: the session preference,
// then the Accept-Language header, then the default language.
func GetLang(r *http.Request) string {
	if globalSessionManager != nil {
		if lang := globalSessionManager.GetString(r.Context(), SessionKeyLang); lang != "" && i18n.IsSupported(lang) {
			return lang
		}
	}
	if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
		if lang := i18n.MatchLanguage(acceptLang); lang != "" {
			return lang
		}
	}
	return i18n.GetDefaultLanguage()
}
