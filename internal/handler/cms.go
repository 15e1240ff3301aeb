// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/webgen-go/internal/cms"
	"github.com/olegiv/webgen-go/internal/docstore"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/render"
)

// SessionKeyCMSUser holds the signed-in CMS user id. It is separate from
// the builder session so both areas can be used side by side.
const SessionKeyCMSUser = "cms_user_id"

// CMS routes, selected by the "route" query parameter.
const (
	cmsRouteLogin             = "login"
	cmsRouteLogout            = "logout"
	cmsRoutePages             = "pages"
	cmsRoutePageNew           = "page_new"
	cmsRoutePageView          = "page_view"
	cmsRoutePageEdit          = "page_edit"
	cmsRoutePageDelete        = "page_delete"
	cmsRouteAdminDashboard    = "admin_dashboard"
	cmsRouteAdminPages        = "admin_pages"
	cmsRouteAdminPageView     = "admin_page_view"
	cmsRouteAdminPageDelete   = "admin_page_delete"
	cmsRouteAdminUsers        = "admin_users"
	cmsRouteAdminUserNew      = "admin_user_new"
	cmsRouteAdminUserEdit     = "admin_user_edit"
	cmsRouteAdminUserReset    = "admin_user_reset"
	cmsRouteAdminUserDelete   = "admin_user_delete"
	cmsRouteAdminFooter       = "admin_footer"
	cmsRouteAdminFooterNew    = "admin_footer_link_new"
	cmsRouteAdminFooterEdit   = "admin_footer_link_edit"
	cmsRouteAdminFooterDelete = "admin_footer_link_delete"
)

// cmsAccess is the guard a CMS route runs behind.
type cmsAccess int

const (
	accessPublic cmsAccess = iota
	accessUser
	accessAdmin
)

// cmsRequest carries what every CMS route needs.
type cmsRequest struct {
	user *cms.User
	lang string
	id   int
}

type cmsRoute struct {
	access cmsAccess
	handle func(w http.ResponseWriter, r *http.Request, c cmsRequest)
}

// CMSPagesView is the data for the page listings.
type CMSPagesView struct {
	Pages []cms.PageView
	Admin bool
}

// CMSPageView is the data for a single page.
type CMSPageView struct {
	Page    cms.PageView
	Content template.HTML
	CanEdit bool
	Admin   bool
}

// CMSFormView is the data for every CMS form. Values echoes the submitted
// input; Errors holds translated validation messages.
type CMSFormView struct {
	Action  string
	Heading string
	IsNew   bool
	Values  map[string]string
	Errors  []string
}

// CMSHandler serves the CMS through a single entry point at /cms.
type CMSHandler struct {
	service         *cms.Service
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
	routes          map[string]cmsRoute
}

// NewCMSHandler creates a new CMSHandler. lp may be nil.
func NewCMSHandler(service *cms.Service, renderer *render.Renderer, sm *scs.SessionManager, lp *middleware.LoginProtection) *CMSHandler {
	h := &CMSHandler{
		service:         service,
		renderer:        renderer,
		sessionManager:  sm,
		loginProtection: lp,
	}
	h.routes = map[string]cmsRoute{
		cmsRouteLogin:             {accessPublic, h.login},
		cmsRouteLogout:            {accessPublic, h.logout},
		cmsRoutePages:             {accessUser, h.pages},
		cmsRoutePageNew:           {accessUser, h.pageNew},
		cmsRoutePageView:          {accessUser, h.pageView},
		cmsRoutePageEdit:          {accessUser, h.pageEdit},
		cmsRoutePageDelete:        {accessUser, h.pageDelete},
		cmsRouteAdminDashboard:    {accessAdmin, h.adminDashboard},
		cmsRouteAdminPages:        {accessAdmin, h.adminPages},
		cmsRouteAdminPageView:     {accessAdmin, h.adminPageView},
		cmsRouteAdminPageDelete:   {accessAdmin, h.adminPageDelete},
		cmsRouteAdminUsers:        {accessAdmin, h.adminUsers},
		cmsRouteAdminUserNew:      {accessAdmin, h.adminUserNew},
		cmsRouteAdminUserEdit:     {accessAdmin, h.adminUserEdit},
		cmsRouteAdminUserReset:    {accessAdmin, h.adminUserReset},
		cmsRouteAdminUserDelete:   {accessAdmin, h.adminUserDelete},
		cmsRouteAdminFooter:       {accessAdmin, h.adminFooter},
		cmsRouteAdminFooterNew:    {accessAdmin, h.adminFooterLinkNew},
		cmsRouteAdminFooterEdit:   {accessAdmin, h.adminFooterLinkEdit},
		cmsRouteAdminFooterDelete: {accessAdmin, h.adminFooterLinkDelete},
	}
	return h
}

// cmsURL builds an entry point URL for route and an optional id.
func cmsURL(route string, id int) string {
	q := url.Values{"route": {route}}
	if id > 0 {
		q.Set("id", strconv.Itoa(id))
	}
	return RouteCMS + "?" + q.Encode()
}

// ServeHTTP handles GET and POST /cms. Unknown routes show the page list.
func (h *CMSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("route")
	route, ok := h.routes[name]
	if !ok {
		route = h.routes[cmsRoutePages]
	}

	c := cmsRequest{lang: middleware.GetLang(r)}
	c.id, _ = strconv.Atoi(r.URL.Query().Get("id"))

	user, err := h.currentUser(r)
	if err != nil {
		logAndInternalError(w, "failed to load CMS user", "error", err)
		return
	}
	c.user = user

	switch route.access {
	case accessUser, accessAdmin:
		if c.user == nil {
			login := cmsURL(cmsRouteLogin, 0) + "&next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, login, http.StatusSeeOther)
			return
		}
		if route.access == accessAdmin && !c.user.IsAdmin() {
			slog.Warn("access denied",
				"status", http.StatusForbidden,
				"route", name,
				"cms_user_id", c.user.ID,
				"remote_addr", r.RemoteAddr,
			)
			forbidden(w, c.lang)
			return
		}
	}

	route.handle(w, r, c)
}

// currentUser resolves the session's CMS user. A session pointing at a
// deleted account is cleared.
func (h *CMSHandler) currentUser(r *http.Request) (*cms.User, error) {
	id := h.sessionManager.GetInt(r.Context(), SessionKeyCMSUser)
	if id == 0 {
		return nil, nil
	}
	user, err := h.service.UserByID(r.Context(), id)
	if errors.Is(err, cms.ErrNotFound) {
		h.sessionManager.Remove(r.Context(), SessionKeyCMSUser)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// data builds template data for CMS pages, including the footer.
func (h *CMSHandler) data(r *http.Request, c cmsRequest, title string, data any) render.TemplateData {
	td := render.TemplateData{
		Title: title,
		Lang:  c.lang,
		Data:  data,
	}
	if c.user != nil {
		td.User = *c.user
	}
	footer, err := h.service.Footer(r.Context())
	if err != nil {
		slog.Warn("failed to load CMS footer", "error", err)
	} else {
		td.Footer = footer
	}
	return td
}

func (h *CMSHandler) render(w http.ResponseWriter, r *http.Request, c cmsRequest, name, title string, data any) {
	renderPage(w, r, h.renderer, http.StatusOK, name, h.data(r, c, title, data))
}

// renderForm re-renders a form with the messages of a failed submission.
func (h *CMSHandler) renderForm(w http.ResponseWriter, r *http.Request, c cmsRequest, name string, form CMSFormView, err error) {
	var fe cms.FieldErrors
	if errors.As(err, &fe) {
		for _, key := range fe.Keys() {
			form.Errors = append(form.Errors, i18n.T(c.lang, key))
		}
	} else if err != nil {
		slog.Error("CMS update failed", "error", err)
		form.Errors = append(form.Errors, storageMessage(c.lang, err))
	}
	h.render(w, r, c, name, i18n.T(c.lang, form.Heading), form)
}

// failure answers a service error that is not a validation error.
func (h *CMSHandler) failure(w http.ResponseWriter, c cmsRequest, err error) {
	switch {
	case errors.Is(err, cms.ErrNotFound):
		notFound(w, c.lang)
	case errors.Is(err, cms.ErrForbidden):
		forbidden(w, c.lang)
	case errors.Is(err, docstore.ErrLockTimeout):
		logAndHTTPError(w, storageMessage(c.lang, err), http.StatusServiceUnavailable, "CMS document busy", "error", err)
	default:
		logAndInternalError(w, "CMS request failed", "error", err)
	}
}

// postOnly rejects anything but POST for routes that only mutate.
func postOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}

func (h *CMSHandler) login(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	next := safeRedirectTarget(r.URL.Query().Get("next"), cmsURL(cmsRoutePages, 0))
	view := CMSFormView{Action: cmsURL(cmsRouteLogin, 0) + "&next=" + url.QueryEscape(next), Values: map[string]string{}}

	if r.Method != http.MethodPost {
		if c.user != nil {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		h.render(w, r, c, "cms/login", i18n.T(c.lang, "cms.login_title"), view)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	view.Values["email"] = email

	if h.loginProtection != nil {
		if !h.loginProtection.AllowIP(r) {
			slog.Warn("CMS login rate limit exceeded", clientAttrs(r)...)
			view.Errors = []string{i18n.T(c.lang, "auth.rate_limit")}
			renderPage(w, r, h.renderer, http.StatusTooManyRequests, "cms/login", h.data(r, c, i18n.T(c.lang, "cms.login_title"), view))
			return
		}
		if locked, remaining := h.loginProtection.IsAccountLocked(middleware.RealmCMS, email); locked {
			slog.Warn("CMS login attempt on locked account", append(clientAttrs(r), "email", email)...)
			view.Errors = []string{i18n.T(c.lang, "auth.locked", formatDuration(remaining))}
			h.render(w, r, c, "cms/login", i18n.T(c.lang, "cms.login_title"), view)
			return
		}
	}

	user, err := h.service.Authenticate(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		if !errors.Is(err, cms.ErrInvalidCredentials) {
			slog.Error("CMS login failed", "email", email, "error", err)
			view.Errors = []string{storageMessage(c.lang, err)}
		} else {
			slog.Warn("CMS login failed: invalid credentials", append(clientAttrs(r), "category", "auth", "email", email)...)
			view.Errors = []string{i18n.T(c.lang, "cms.invalid_credentials")}
			if h.loginProtection != nil {
				if locked, d := h.loginProtection.RecordFailedAttempt(middleware.RealmCMS, email); locked {
					view.Errors = []string{i18n.T(c.lang, "auth.locked", formatDuration(d))}
				}
			}
		}
		h.render(w, r, c, "cms/login", i18n.T(c.lang, "cms.login_title"), view)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(middleware.RealmCMS, email)
	}
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}
	h.sessionManager.Put(r.Context(), SessionKeyCMSUser, user.ID)

	slog.Info("CMS user logged in", append(clientAttrs(r), "cms_user_id", user.ID, "role", user.Role)...)
	flashSuccess(w, r, h.renderer, next, i18n.T(c.lang, "cms.logged_in"))
}

// logout signs out of the CMS only. A builder session stays intact.
func (h *CMSHandler) logout(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	h.sessionManager.Remove(r.Context(), SessionKeyCMSUser)
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("session renewal error", "error", err)
	}
	if c.user != nil {
		slog.Info("CMS user logged out", "cms_user_id", c.user.ID)
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteLogin, 0), i18n.T(c.lang, "cms.logged_out"))
}

func (h *CMSHandler) pages(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	pages, err := h.service.ListPages(r.Context(), *c.user)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	h.render(w, r, c, "cms/pages", i18n.T(c.lang, "cms.pages_title"), CMSPagesView{Pages: pages})
}

func (h *CMSHandler) pageNew(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	form := CMSFormView{
		Action:  cmsURL(cmsRoutePageNew, 0),
		Heading: "cms.new_page",
		IsNew:   true,
		Values:  map[string]string{},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/page_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := cms.PageInput{Title: r.PostFormValue("title"), Content: r.PostFormValue("content")}
	form.Values = map[string]string{"title": in.Title, "content": in.Content}
	page, err := h.service.CreatePage(r.Context(), *c.user, in)
	if err != nil {
		h.renderForm(w, r, c, "cms/page_form", form, err)
		return
	}
	slog.Info("CMS page created", "page_id", page.ID, "cms_user_id", c.user.ID)
	flashSuccess(w, r, h.renderer, cmsURL(cmsRoutePages, 0), i18n.T(c.lang, "cms.page_created"))
}

func (h *CMSHandler) pageView(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	page, err := h.service.GetPage(r.Context(), *c.user, c.id)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	view := CMSPageView{
		Page:    page,
		Content: cms.RenderContent(page.Content),
		CanEdit: true,
	}
	h.render(w, r, c, "cms/page_view", page.Title, view)
}

func (h *CMSHandler) pageEdit(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	page, err := h.service.GetPage(r.Context(), *c.user, c.id)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	form := CMSFormView{
		Action:  cmsURL(cmsRoutePageEdit, page.ID),
		Heading: "cms.edit_page",
		Values:  map[string]string{"title": page.Title, "content": page.Content},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/page_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := cms.PageInput{Title: r.PostFormValue("title"), Content: r.PostFormValue("content")}
	form.Values = map[string]string{"title": in.Title, "content": in.Content}
	if _, err := h.service.UpdatePage(r.Context(), *c.user, page.ID, in); err != nil {
		if errors.Is(err, cms.ErrNotFound) || errors.Is(err, cms.ErrForbidden) {
			h.failure(w, c, err)
			return
		}
		h.renderForm(w, r, c, "cms/page_form", form, err)
		return
	}
	slog.Info("CMS page updated", "page_id", page.ID, "cms_user_id", c.user.ID)
	flashSuccess(w, r, h.renderer, cmsURL(cmsRoutePages, 0), i18n.T(c.lang, "cms.page_updated"))
}

func (h *CMSHandler) pageDelete(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if !postOnly(w, r) {
		return
	}
	if err := h.service.DeletePage(r.Context(), *c.user, c.id); err != nil {
		h.failure(w, c, err)
		return
	}
	slog.Info("CMS page deleted", "page_id", c.id, "cms_user_id", c.user.ID)
	flashSuccess(w, r, h.renderer, cmsURL(cmsRoutePages, 0), i18n.T(c.lang, "cms.page_deleted"))
}
