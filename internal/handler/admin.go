// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/render"
	"github.com/olegiv/webgen-go/internal/service"
)

// AdminView is the data for the admin console.
type AdminView struct {
	Users []credential.User
	Sites []service.SiteInfo
	Roles []credential.Role
}

// AdminHandler serves the builder admin console.
type AdminHandler struct {
	users          *credential.Store
	sites          *service.Sites
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *credential.Store, sites *service.Sites, renderer *render.Renderer, sm *scs.SessionManager) *AdminHandler {
	return &AdminHandler{users: users, sites: sites, renderer: renderer, sessionManager: sm}
}

// Show handles GET /admin.
func (h *AdminHandler) Show(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)

	users, err := h.users.List(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list users", "error", err)
		return
	}
	sites, err := h.sites.Overview(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list sites", "error", err)
		return
	}

	view := AdminView{
		Users: users,
		Sites: sites,
		Roles: []credential.Role{credential.RoleUser, credential.RoleAdmin},
	}
	renderPage(w, r, h.renderer, http.StatusOK, "app/admin", appData(r, i18n.T(lang, "admin.title"), view))
}

// Action handles POST /admin and redirects back with a flash message.
func (h *AdminHandler) Action(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := middleware.GetActor(r)
	if !ok {
		http.Redirect(w, r, RouteRoot, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, RouteAdmin, i18n.T(lang, "error.internal"))
		return
	}

	ctx := r.Context()
	username := strings.TrimSpace(r.PostFormValue("username"))

	switch action := r.PostFormValue("action"); action {
	case actionCreateUser:
		role := credential.ParseRole(r.PostFormValue("role"))
		profile, err := h.users.CreateUser(ctx, username, r.PostFormValue("password"), role)
		if err != nil {
			flashError(w, r, h.renderer, RouteAdmin, credentialMessage(lang, err))
			return
		}
		slog.Warn("user created by admin", "category", "user", "username", profile.Username, "role", profile.Role, "actor", actor.Username)
		flashSuccess(w, r, h.renderer, RouteAdmin, i18n.T(lang, "admin.user_created", profile.Username))

	case actionUpdateRole:
		role := credential.ParseRole(r.PostFormValue("role"))
		profile, err := h.users.SetRole(ctx, username, role)
		if err != nil {
			flashError(w, r, h.renderer, RouteAdmin, credentialMessage(lang, err))
			return
		}
		refreshSession(r, h.sessionManager, h.sites, actor)
		slog.Warn("user role changed", "category", "user", "username", profile.Username, "role", profile.Role, "actor", actor.Username)
		flashSuccess(w, r, h.renderer, RouteAdmin, i18n.T(lang, "admin.role_updated", profile.Username, string(profile.Role)))

	case actionResetPassword:
		if err := h.users.ResetPassword(ctx, username, r.PostFormValue("password")); err != nil {
			flashError(w, r, h.renderer, RouteAdmin, credentialMessage(lang, err))
			return
		}
		slog.Warn("password reset by admin", "category", "user", "username", username, "actor", actor.Username)
		flashSuccess(w, r, h.renderer, RouteAdmin, i18n.T(lang, "admin.password_reset", username))

	case actionDeleteUser:
		removed, err := h.sites.DeleteUser(ctx, actor, username)
		if err != nil {
			flashError(w, r, h.renderer, RouteAdmin, credentialMessage(lang, err))
			return
		}
		flashSuccess(w, r, h.renderer, RouteAdmin, i18n.T(lang, "admin.user_deleted", username, len(removed)))

	case actionDeleteSite:
		slug := strings.TrimSpace(r.PostFormValue("slug"))
		err := h.sites.DeleteSite(ctx, actor, slug)
		refreshSession(r, h.sessionManager, h.sites, actor)
		if err != nil {
			slog.Error("site delete failed", "slug", slug, "actor", actor.Username, "error", err)
			flashError(w, r, h.renderer, RouteAdmin, i18n.T(lang, "site.delete_failed"))
			return
		}
		slog.Warn("site deleted", "category", "site", "slug", slug, "actor", actor.Username)
		flashSuccess(w, r, h.renderer, RouteAdmin, i18n.T(lang, "site.deleted", slug))

	default:
		slog.Debug("unknown admin action", "action", action)
		http.Redirect(w, r, RouteAdmin, http.StatusSeeOther)
	}
}
