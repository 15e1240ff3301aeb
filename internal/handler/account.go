// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
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

// AccountView is the data for the dashboard and editor pages.
type AccountView struct {
	Sites []string
}

// AccountHandler serves the dashboard and the editor.
type AccountHandler struct {
	sites          *service.Sites
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(sites *service.Sites, renderer *render.Renderer, sm *scs.SessionManager) *AccountHandler {
	return &AccountHandler{sites: sites, renderer: renderer, sessionManager: sm}
}

// Dashboard handles GET /dashboard.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := h.currentActor(w, r)
	if !ok {
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, "app/dashboard",
		withActor(appData(r, i18n.T(lang, "dashboard.title"), AccountView{Sites: actor.OwnedPages}), actor))
}

// Editor handles GET /editor and lists the actor's existing sites.
func (h *AccountHandler) Editor(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := h.currentActor(w, r)
	if !ok {
		return
	}
	owned, err := h.sites.OwnedSites(r.Context(), actor)
	if err != nil {
		logAndInternalError(w, "failed to list owned sites", "username", actor.Username, "error", err)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, "app/editor",
		withActor(appData(r, i18n.T(lang, "editor.title"), AccountView{Sites: owned}), actor))
}

// EditorAction handles POST /editor. The only action is delete_site, which
// is limited to the actor's own sites unless the actor is an admin.
func (h *AccountHandler) EditorAction(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := middleware.GetActor(r)
	if !ok {
		http.Redirect(w, r, RouteRoot, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostFormValue("action") != actionDeleteSite {
		http.Redirect(w, r, RouteEditor, http.StatusSeeOther)
		return
	}

	slug := strings.TrimSpace(r.PostFormValue("slug"))
	err := h.sites.DeleteSite(r.Context(), actor, slug)
	refreshSession(r, h.sessionManager, h.sites, actor)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			slog.Warn("site delete refused", "slug", slug, "username", actor.Username)
			flashError(w, r, h.renderer, RouteEditor, i18n.T(lang, "site.not_owned"))
			return
		}
		slog.Error("site delete failed", "slug", slug, "username", actor.Username, "error", err)
		flashError(w, r, h.renderer, RouteEditor, i18n.T(lang, "site.delete_failed"))
		return
	}
	slog.Warn("site deleted", "category", "site", "slug", slug, "username", actor.Username)
	flashSuccess(w, r, h.renderer, RouteEditor, i18n.T(lang, "site.deleted", slug))
}

// currentActor returns the signed-in profile, which LoadActor has already
// refreshed from the store.
func (h *AccountHandler) currentActor(w http.ResponseWriter, r *http.Request) (credential.Profile, bool) {
	actor, ok := middleware.GetActor(r)
	if !ok {
		http.Redirect(w, r, RouteRoot, http.StatusSeeOther)
		return credential.Profile{}, false
	}
	return actor, true
}

// refreshSession stores the actor's current profile in the session.
func refreshSession(r *http.Request, sm *scs.SessionManager, sites *service.Sites, actor credential.Profile) {
	fresh, err := sites.Refresh(r.Context(), actor)
	if err != nil {
		slog.Warn("failed to refresh session profile", "username", actor.Username, "error", err)
		return
	}
	sm.Put(r.Context(), middleware.SessionKeyUser, fresh)
}

// withActor replaces the user in td with a refreshed profile.
func withActor(td render.TemplateData, actor credential.Profile) render.TemplateData {
	td.User = actor
	return td
}
