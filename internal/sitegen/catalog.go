// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sitegen turns builder form input into self-contained HTML
// documents. The catalog declares each content template's fields; the
// generator renders a document and publishes it through a site registry.
package sitegen

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template keys.
const (
	TemplatePortfolio      = "portfolio"
	TemplateContact        = "contact"
	TemplateImprintPrivacy = "imprint_privacy"
	TemplateProduct        = "product"
	TemplatePricing        = "pricing"
	TemplateAbout          = "about"

	// DefaultTemplate is rendered for unknown keys.
	DefaultTemplate = TemplateAbout
)

// FieldKind selects the form control used for a field.
type FieldKind string

// Field kinds.
const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
)

// Length limits per field kind.
const (
	MaxTextLen     = 500
	MaxTextareaLen = 20000
)

// Errors returned when validating template input.
var (
	ErrUnknownField = errors.New("field is not part of the template")
	ErrFieldTooLong = errors.New("value is too long")
)

// FieldError ties a validation error to a form field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field is one declared input of a template.
type Field struct {
	Name        string
	Label       string
	Kind        FieldKind
	Placeholder string
	MaxLen      int
}

// Template is a content layout with its declared fields.
type Template struct {
	Key         string
	Label       string
	Description string
	Fields      []Field
	build       func(Values) any
}

// Field returns the declared field called name.
func (t Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Values holds submitted field values keyed by field name.
type Values map[string]string

// Get returns the trimmed value of a field.
func (v Values) Get(name string) string {
	return strings.TrimSpace(v[name])
}

// Instance is a template together with validated values.
type Instance struct {
	Template Template
	Values   Values
}

// Catalog is the fixed set of content templates.
type Catalog struct {
	templates []Template
	html      *template.Template
}

func text(name, label, placeholder string) Field {
	return Field{Name: name, Label: label, Kind: KindText, Placeholder: placeholder, MaxLen: MaxTextLen}
}

func textarea(name, label, placeholder string) Field {
	return Field{Name: name, Label: label, Kind: KindTextarea, Placeholder: placeholder, MaxLen: MaxTextareaLen}
}

// NewCatalog returns the catalog with its renderers parsed.
func NewCatalog() (*Catalog, error) {
	html, err := template.New("sitegen").Funcs(template.FuncMap{
		"nl2br": nl2br,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing site templates: %w", err)
	}

	return &Catalog{
		html: html,
		templates: []Template{
			{
				Key:         TemplatePortfolio,
				Label:       "Portfolio",
				Description: "Showcase your projects and background.",
				Fields: []Field{
					textarea("portfolio_about", "About blurb", "Short introduction."),
					textarea("portfolio_projects", "Projects (one per line as Title | Description | Link)", "Project One | What it does | https://example.com"),
				},
				build: buildPortfolio,
			},
			{
				Key:         TemplateContact,
				Label:       "Contact",
				Description: "Contact details and quick call-to-actions.",
				Fields: []Field{
					text("contact_email", "Contact email", ""),
					text("contact_phone", "Phone number", ""),
					textarea("contact_address", "Address", ""),
					text("contact_message", "Headline message", ""),
				},
				build: buildContact,
			},
			{
				Key:         TemplateImprintPrivacy,
				Label:       "Imprint / Privacy",
				Description: "Display legal imprint and privacy notice.",
				Fields: []Field{
					textarea("imprint_body", "Imprint content", ""),
					textarea("privacy_body", "Privacy policy", ""),
				},
				build: buildImprintPrivacy,
			},
			{
				Key:         TemplateProduct,
				Label:       "Product",
				Description: "Highlight a product with features and pricing.",
				Fields: []Field{
					text("product_name", "Product name", ""),
					textarea("product_description", "Description", ""),
					textarea("product_features", "Features (one per line)", ""),
					text("product_price", "Price display", ""),
				},
				build: buildProduct,
			},
			{
				Key:         TemplatePricing,
				Label:       "Pricing",
				Description: "List multiple pricing plans.",
				Fields: []Field{
					textarea("pricing_plans", "Plans (one per line as Name | Price | Features separated by ; )", ""),
					text("pricing_cta", "Shared call-to-action", ""),
				},
				build: buildPricing,
			},
			{
				Key:         TemplateAbout,
				Label:       "About",
				Description: "Simple about page with highlights.",
				Fields: []Field{
					textarea("about_story", "Story", ""),
					textarea("about_highlights", "Highlights (one per line)", ""),
				},
				build: buildAbout,
			},
		},
	}, nil
}

// Templates returns the templates in display order.
func (c *Catalog) Templates() []Template {
	return c.templates
}

// Has reports whether key names a template.
func (c *Catalog) Has(key string) bool {
	for _, t := range c.templates {
		if t.Key == key {
			return true
		}
	}
	return false
}

// Lookup returns the template for key, falling back to DefaultTemplate.
func (c *Catalog) Lookup(key string) Template {
	var fallback Template
	for _, t := range c.templates {
		if t.Key == key {
			return t
		}
		if t.Key == DefaultTemplate {
			fallback = t
		}
	}
	return fallback
}

// Instance validates values against the template's declared fields.
// Keys the template does not declare and over-long values are rejected.
func (c *Catalog) Instance(key string, values map[string]string) (Instance, error) {
	t := c.Lookup(key)
	clean := make(Values, len(values))
	for name, value := range values {
		field, ok := t.Field(name)
		if !ok {
			return Instance{}, &FieldError{Field: name, Err: ErrUnknownField}
		}
		value = strings.TrimSpace(value)
		if utf8.RuneCountInString(value) > field.MaxLen {
			return Instance{}, &FieldError{Field: name, Err: ErrFieldTooLong}
		}
		clean[name] = value
	}
	return Instance{Template: t, Values: clean}, nil
}

// RenderContent renders the body sections for an instance.
func (c *Catalog) RenderContent(inst Instance) (template.HTML, error) {
	var sb strings.Builder
	if err := c.html.ExecuteTemplate(&sb, inst.Template.Key, inst.Template.build(inst.Values)); err != nil {
		return "", fmt.Errorf("rendering %s content: %w", inst.Template.Key, err)
	}
	return template.HTML(sb.String()), nil
}
