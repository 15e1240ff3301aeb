// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/imaging"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/registry"
	"github.com/olegiv/webgen-go/internal/render"
	"github.com/olegiv/webgen-go/internal/service"
	"github.com/olegiv/webgen-go/internal/sitegen"
)

// Default values of a fresh builder form.
const (
	defaultButtonLabel = "Get in touch"
	defaultButtonURL   = "#"
	defaultButtonColor = "#2563eb"
)

// BuilderForm echoes the submitted builder form back to the page.
type BuilderForm struct {
	Name           string
	Title          string
	Subtitle       string
	Slug           string
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
	Favicon        string
	Template       string
	Fields         map[string]string
	Buttons        []sitegen.Button
	SocialEmail    string
	SocialDiscord  string
}

// BuilderView is the data for the builder page.
type BuilderView struct {
	Form        BuilderForm
	Templates   []sitegen.Template
	PreviewHTML string
	SiteURL     string
	ErrorField  string
}

// BuilderHandler serves the site builder at /.
type BuilderHandler struct {
	generator      *sitegen.Generator
	sites          *service.Sites
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
	maxUpload      int64
}

// NewBuilderHandler creates a new BuilderHandler.
func NewBuilderHandler(gen *sitegen.Generator, sites *service.Sites, renderer *render.Renderer, sm *scs.SessionManager, maxUpload int64) *BuilderHandler {
	return &BuilderHandler{
		generator:      gen,
		sites:          sites,
		renderer:       renderer,
		sessionManager: sm,
		maxUpload:      maxUpload,
	}
}

// Show handles GET /. Anonymous visitors get the login and register forms.
func (h *BuilderHandler) Show(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := middleware.GetActor(r)
	if !ok {
		renderPage(w, r, h.renderer, http.StatusOK, "app/login", appData(r, i18n.T(lang, "auth.login_title"), nil))
		return
	}

	view := BuilderView{
		Form:      defaultBuilderForm(),
		Templates: h.generator.Catalog().Templates(),
	}
	slog.Debug("builder opened", "username", actor.Username)
	renderPage(w, r, h.renderer, http.StatusOK, "app/builder", appData(r, i18n.T(lang, "builder.title"), view))
}

// Submit handles POST / with action=preview or action=generate.
func (h *BuilderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)
	actor, ok := middleware.GetActor(r)
	if !ok {
		http.Redirect(w, r, RouteRoot, http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderError(w, r, http.StatusRequestEntityTooLarge, BuilderView{Form: defaultBuilderForm()}, i18n.T(lang, "builder.upload_too_large"))
			return
		}
		h.renderError(w, r, http.StatusBadRequest, BuilderView{Form: defaultBuilderForm()}, i18n.T(lang, "error.internal"))
		return
	}

	form := h.parseForm(r)
	req := h.buildRequest(form)
	view := BuilderView{Form: form}

	logo, err := formUpload(r, "logo_file")
	if err != nil {
		slog.Error("reading logo upload", "error", err)
		h.renderError(w, r, http.StatusBadRequest, view, i18n.T(lang, "error.internal"))
		return
	}
	req.Logo = logo

	var res sitegen.Result
	action := r.PostFormValue("action")
	if action == actionGenerate {
		res, err = h.generator.Generate(r.Context(), actor, req)
	} else {
		res, err = h.generator.Preview(r.Context(), req)
	}
	if err != nil {
		field, msg := h.generateError(lang, err, actor)
		view.ErrorField = field
		h.renderError(w, r, http.StatusOK, view, msg)
		return
	}

	view.PreviewHTML = res.HTML
	data := appData(r, i18n.T(lang, "builder.title"), nil)
	data.FlashType = render.FlashSuccess
	if action == actionGenerate {
		view.SiteURL = "/sites/" + res.Slug + "/"
		view.Form.Slug = res.Slug
		data.Flash = i18n.T(lang, "builder.generated", res.Slug)
		refreshSession(r, h.sessionManager, h.sites, actor)
	} else {
		data.Flash = i18n.T(lang, "builder.preview_updated")
		data.FlashType = render.FlashInfo
	}
	view.Templates = h.generator.Catalog().Templates()
	data.Data = view
	renderPage(w, r, h.renderer, http.StatusOK, "app/builder", data)
}

func (h *BuilderHandler) renderError(w http.ResponseWriter, r *http.Request, status int, view BuilderView, msg string) {
	lang := middleware.GetLang(r)
	view.Templates = h.generator.Catalog().Templates()
	data := appData(r, i18n.T(lang, "builder.title"), view)
	data.Flash = msg
	data.FlashType = render.FlashError
	renderPage(w, r, h.renderer, status, "app/builder", data)
}

// generateError maps generator failures to the offending field and a message.
func (h *BuilderHandler) generateError(lang string, err error, actor credential.Profile) (string, string) {
	var fe *sitegen.FieldError
	switch {
	case errors.As(err, &fe) && errors.Is(err, imaging.ErrNotImage):
		return fe.Field, i18n.T(lang, "builder.not_image")
	case errors.As(err, &fe) && errors.Is(err, imaging.ErrTooLarge):
		return fe.Field, i18n.T(lang, "builder.logo_too_large", imaging.MaxDimension, imaging.MaxDimension)
	case errors.As(err, &fe):
		label := fe.Field
		if f, ok := h.fieldByName(fe.Field); ok {
			label = f.Label
		}
		return fe.Field, i18n.T(lang, "builder.field_too_long", label)
	case errors.Is(err, credential.ErrNotFound):
		return "", i18n.T(lang, "auth.account_gone")
	case errors.Is(err, sitegen.ErrNotOwner):
		return "slug", i18n.T(lang, "builder.not_owner")
	case errors.Is(err, registry.ErrReservedSlug):
		return "slug", i18n.T(lang, "builder.reserved_slug")
	case errors.Is(err, registry.ErrInvalidSlug), errors.Is(err, registry.ErrOutsideRoot):
		return "slug", i18n.T(lang, "builder.invalid_slug")
	default:
		slog.Error("site generation failed", "username", actor.Username, "error", err)
		return "", i18n.T(lang, "builder.failed")
	}
}

func (h *BuilderHandler) fieldByName(name string) (sitegen.Field, bool) {
	for _, t := range h.generator.Catalog().Templates() {
		if f, ok := t.Field(name); ok {
			return f, true
		}
	}
	return sitegen.Field{}, false
}

// parseForm reads every builder input, keeping values for all templates
// so switching templates does not lose what was typed.
func (h *BuilderHandler) parseForm(r *http.Request) BuilderForm {
	form := BuilderForm{
		Name:           strings.TrimSpace(r.PostFormValue("name")),
		Title:          strings.TrimSpace(r.PostFormValue("title")),
		Subtitle:       strings.TrimSpace(r.PostFormValue("subtitle")),
		Slug:           strings.TrimSpace(r.PostFormValue("slug")),
		PrimaryColor:   strings.TrimSpace(r.PostFormValue("primary_color")),
		SecondaryColor: strings.TrimSpace(r.PostFormValue("secondary_color")),
		LogoURL:        strings.TrimSpace(r.PostFormValue("logo_url")),
		Favicon:        strings.TrimSpace(r.PostFormValue("favicon")),
		Template:       r.PostFormValue("template"),
		Fields:         map[string]string{},
		SocialEmail:    strings.TrimSpace(r.PostFormValue("social_email")),
		SocialDiscord:  strings.TrimSpace(r.PostFormValue("social_discord")),
	}
	if !h.generator.Catalog().Has(form.Template) {
		form.Template = sitegen.DefaultTemplate
	}
	for _, t := range h.generator.Catalog().Templates() {
		for _, f := range t.Fields {
			if v := r.PostFormValue(f.Name); v != "" {
				form.Fields[f.Name] = v
			}
		}
	}
	form.Buttons = sitegen.BuildButtons(r.PostForm["button_label[]"], r.PostForm["button_url[]"], r.PostForm["button_color[]"])
	return form
}

// buildRequest turns the form into a generator request. Only the chosen
// template's fields are passed on.
func (h *BuilderHandler) buildRequest(form BuilderForm) sitegen.Request {
	tmpl := h.generator.Catalog().Lookup(form.Template)
	fields := make(map[string]string, len(tmpl.Fields))
	for _, f := range tmpl.Fields {
		if v, ok := form.Fields[f.Name]; ok {
			fields[f.Name] = v
		}
	}
	return sitegen.Request{
		Slug: form.Slug,
		Branding: sitegen.Branding{
			Name:           form.Name,
			Title:          form.Title,
			Subtitle:       form.Subtitle,
			PrimaryColor:   form.PrimaryColor,
			SecondaryColor: form.SecondaryColor,
		},
		Template:   tmpl.Key,
		Fields:     fields,
		Buttons:    form.Buttons,
		Social:     sitegen.BuildSocial(form.SocialEmail, form.SocialDiscord),
		LogoURL:    form.LogoURL,
		FaviconURL: form.Favicon,
	}
}

// formUpload returns the named file, or nil when none was sent.
func formUpload(r *http.Request, name string) (*sitegen.Upload, error) {
	file, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	if header.Size == 0 {
		return nil, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &sitegen.Upload{Filename: header.Filename, Data: data}, nil
}

func defaultBuilderForm() BuilderForm {
	return BuilderForm{
		PrimaryColor:   sitegen.DefaultPrimaryColor,
		SecondaryColor: sitegen.DefaultSecondaryColor,
		Template:       sitegen.TemplatePortfolio,
		Fields:         map[string]string{},
		Buttons:        []sitegen.Button{{Label: defaultButtonLabel, URL: defaultButtonURL, Color: defaultButtonColor}},
	}
}

// appData builds template data for the builder area.
func appData(r *http.Request, title string, data any) render.TemplateData {
	td := render.TemplateData{
		Title: title,
		Lang:  middleware.GetLang(r),
		Data:  data,
	}
	if actor, ok := middleware.GetActor(r); ok {
		td.User = actor
	}
	return td
}
