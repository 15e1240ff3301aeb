// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/webgen-go/internal/cms"
	"github.com/olegiv/webgen-go/internal/i18n"
)

// CMSDashboardView is the data for the CMS admin dashboard.
type CMSDashboardView struct {
	Stats cms.Stats
}

// CMSUsersView is the data for the CMS user list.
type CMSUsersView struct {
	Users  []cms.User
	SelfID int
}

// CMSFooterView is the data for the footer settings page.
type CMSFooterView struct {
	Footer cms.Footer
}

func (h *CMSHandler) adminDashboard(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.failure(w, c, err)
		return
	}
	h.render(w, r, c, "cms/admin_dashboard", i18n.T(c.lang, "cms.dashboard_title"), CMSDashboardView{Stats: stats})
}

func (h *CMSHandler) adminPages(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	pages, err := h.service.ListPages(r.Context(), *c.user)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	h.render(w, r, c, "cms/pages", i18n.T(c.lang, "cms.all_pages"), CMSPagesView{Pages: pages, Admin: true})
}

func (h *CMSHandler) adminPageView(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	page, err := h.service.GetPage(r.Context(), *c.user, c.id)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	view := CMSPageView{
		Page:    page,
		Content: cms.RenderContent(page.Content),
		Admin:   true,
	}
	h.render(w, r, c, "cms/page_view", page.Title, view)
}

func (h *CMSHandler) adminPageDelete(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if !postOnly(w, r) {
		return
	}
	if err := h.service.DeletePage(r.Context(), *c.user, c.id); err != nil {
		h.failure(w, c, err)
		return
	}
	slog.Info("CMS page deleted by admin", "page_id", c.id, "cms_user_id", c.user.ID)
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminPages, 0), i18n.T(c.lang, "cms.page_deleted"))
}

func (h *CMSHandler) adminUsers(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.failure(w, c, err)
		return
	}
	h.render(w, r, c, "cms/admin_users", i18n.T(c.lang, "cms.users_title"), CMSUsersView{Users: users, SelfID: c.user.ID})
}

func userInput(r *http.Request) cms.UserInput {
	return cms.UserInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     cms.ParseRole(r.PostFormValue("role")),
	}
}

// userValues echoes user input back to the form. Passwords are never echoed.
func userValues(in cms.UserInput) map[string]string {
	return map[string]string{"name": in.Name, "email": in.Email, "role": string(in.Role)}
}

func (h *CMSHandler) adminUserNew(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	form := CMSFormView{
		Action:  cmsURL(cmsRouteAdminUserNew, 0),
		Heading: "cms.new_user",
		IsNew:   true,
		Values:  map[string]string{"role": string(cms.RoleUser)},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/admin_user_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := userInput(r)
	form.Values = userValues(in)
	if _, err := h.service.CreateUser(r.Context(), in); err != nil {
		h.renderForm(w, r, c, "cms/admin_user_form", form, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminUsers, 0), i18n.T(c.lang, "cms.user_created"))
}

func (h *CMSHandler) adminUserEdit(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	user, err := h.service.UserByID(r.Context(), c.id)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	form := CMSFormView{
		Action:  cmsURL(cmsRouteAdminUserEdit, user.ID),
		Heading: "cms.edit_user",
		Values:  map[string]string{"name": user.Name, "email": user.Email, "role": string(user.Role)},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/admin_user_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := userInput(r)
	form.Values = userValues(in)
	if _, err := h.service.UpdateUser(r.Context(), user.ID, in); err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			h.failure(w, c, err)
			return
		}
		h.renderForm(w, r, c, "cms/admin_user_form", form, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminUsers, 0), i18n.T(c.lang, "cms.user_updated"))
}

// adminUserReset sets the submitted password, or the default one, and
// shows it to the admin.
func (h *CMSHandler) adminUserReset(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if !postOnly(w, r) {
		return
	}
	password, err := h.service.ResetPassword(r.Context(), c.id, r.PostFormValue("password"))
	if err != nil {
		h.failure(w, c, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminUsers, 0), i18n.T(c.lang, "cms.password_reset", password))
}

func (h *CMSHandler) adminUserDelete(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if !postOnly(w, r) {
		return
	}
	if _, err := h.service.DeleteUser(r.Context(), *c.user, c.id); err != nil {
		if errors.Is(err, cms.ErrSelfDelete) {
			flashError(w, r, h.renderer, cmsURL(cmsRouteAdminUsers, 0), i18n.T(c.lang, "cms.self_delete"))
			return
		}
		h.failure(w, c, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminUsers, 0), i18n.T(c.lang, "cms.user_deleted"))
}

// adminFooter shows the footer settings and saves the footer text.
func (h *CMSHandler) adminFooter(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if r.Method == http.MethodPost {
		if err := h.service.UpdateFooterText(r.Context(), r.PostFormValue("text")); err != nil {
			h.failure(w, c, err)
			return
		}
		flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminFooter, 0), i18n.T(c.lang, "cms.footer_updated"))
		return
	}

	footer, err := h.service.Footer(r.Context())
	if err != nil {
		h.failure(w, c, err)
		return
	}
	h.render(w, r, c, "cms/admin_footer", i18n.T(c.lang, "cms.footer_title"), CMSFooterView{Footer: footer})
}

func linkInput(r *http.Request) cms.LinkInput {
	return cms.LinkInput{
		Label:    r.PostFormValue("label"),
		URL:      r.PostFormValue("url"),
		Position: r.PostFormValue("position"),
	}
}

func linkValues(in cms.LinkInput) map[string]string {
	return map[string]string{"label": in.Label, "url": in.URL, "position": in.Position}
}

func (h *CMSHandler) adminFooterLinkNew(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	form := CMSFormView{
		Action:  cmsURL(cmsRouteAdminFooterNew, 0),
		Heading: "cms.new_link",
		IsNew:   true,
		Values:  map[string]string{},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/admin_footer_link_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := linkInput(r)
	form.Values = linkValues(in)
	if _, err := h.service.CreateFooterLink(r.Context(), in); err != nil {
		h.renderForm(w, r, c, "cms/admin_footer_link_form", form, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminFooter, 0), i18n.T(c.lang, "cms.link_added"))
}

func (h *CMSHandler) adminFooterLinkEdit(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	link, err := h.service.GetFooterLink(r.Context(), c.id)
	if err != nil {
		h.failure(w, c, err)
		return
	}
	form := CMSFormView{
		Action:  cmsURL(cmsRouteAdminFooterEdit, link.ID),
		Heading: "cms.edit_link",
		Values:  map[string]string{"label": link.Label, "url": link.URL, "position": strconv.Itoa(link.Position)},
	}
	if r.Method != http.MethodPost {
		h.render(w, r, c, "cms/admin_footer_link_form", i18n.T(c.lang, form.Heading), form)
		return
	}

	in := linkInput(r)
	form.Values = linkValues(in)
	if _, err := h.service.UpdateFooterLink(r.Context(), link.ID, in); err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			h.failure(w, c, err)
			return
		}
		h.renderForm(w, r, c, "cms/admin_footer_link_form", form, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminFooter, 0), i18n.T(c.lang, "cms.link_updated"))
}

func (h *CMSHandler) adminFooterLinkDelete(w http.ResponseWriter, r *http.Request, c cmsRequest) {
	if !postOnly(w, r) {
		return
	}
	if err := h.service.DeleteFooterLink(r.Context(), c.id); err != nil {
		h.failure(w, c, err)
		return
	}
	flashSuccess(w, r, h.renderer, cmsURL(cmsRouteAdminFooter, 0), i18n.T(c.lang, "cms.link_deleted"))
}
