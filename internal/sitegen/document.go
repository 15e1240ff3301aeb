// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitegen

import (
	"fmt"
	"html/template"
	"regexp"
	"strings"
)

// Fallbacks for blank branding fields.
const (
	DefaultPrimaryColor   = "#1f6feb"
	DefaultSecondaryColor = "#30a46c"
	DefaultName           = "Your Name"
	DefaultTitle          = "Title"
	DefaultSubtitle       = "Subtitle"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Branding is the site-wide header information.
type Branding struct {
	Name           string
	Title          string
	Subtitle       string
	PrimaryColor   string
	SecondaryColor string
}

// Button is a call-to-action link in the header.
type Button struct {
	Label string
	URL   string
	Color string
}

// SocialLink is a labelled link in the header.
type SocialLink struct {
	Label string
	URL   string
}

// Document is everything needed to render a complete page.
type Document struct {
	Branding   Branding
	Content    Instance
	Buttons    []Button
	Social     []SocialLink
	LogoURL    string
	LogoData   template.URL // data: URI built from a sniffed upload
	FaviconURL string
}

// BuildButtons zips the parallel button form arrays, skipping rows where
// both label and URL are blank.
func BuildButtons(labels, urls, colors []string) []Button {
	var buttons []Button
	for i, label := range labels {
		label = strings.TrimSpace(label)
		url := strings.TrimSpace(at(urls, i))
		if label == "" && url == "" {
			continue
		}
		buttons = append(buttons, Button{Label: label, URL: url, Color: strings.TrimSpace(at(colors, i))})
	}
	return buttons
}

// BuildSocial returns the social links for an email address and a Discord URL.
func BuildSocial(email, discord string) []SocialLink {
	var links []SocialLink
	if email = strings.TrimSpace(email); email != "" {
		links = append(links, SocialLink{Label: "Email", URL: "mailto:" + email})
	}
	if discord = strings.TrimSpace(discord); discord != "" {
		links = append(links, SocialLink{Label: "Discord", URL: discord})
	}
	return links
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

type documentView struct {
	Name       string
	Title      string
	Subtitle   string
	Primary    string
	Secondary  string
	Buttons    []Button
	Social     []SocialLink
	LogoURL    string
	LogoData   template.URL
	FaviconURL string
	Content    template.HTML
}

// RenderDocument renders a complete HTML page. Output depends only on doc.
func (c *Catalog) RenderDocument(doc Document) (string, error) {
	content, err := c.RenderContent(doc.Content)
	if err != nil {
		return "", err
	}

	b := doc.Branding
	view := documentView{
		Name:       orDefault(b.Name, DefaultName),
		Title:      orDefault(b.Title, DefaultTitle),
		Subtitle:   orDefault(b.Subtitle, DefaultSubtitle),
		Primary:    color(b.PrimaryColor, DefaultPrimaryColor),
		Secondary:  color(b.SecondaryColor, DefaultSecondaryColor),
		Social:     doc.Social,
		LogoURL:    strings.TrimSpace(doc.LogoURL),
		LogoData:   doc.LogoData,
		FaviconURL: strings.TrimSpace(doc.FaviconURL),
		Content:    content,
	}
	for _, btn := range doc.Buttons {
		btn.Color = color(btn.Color, view.Primary)
		view.Buttons = append(view.Buttons, btn)
	}

	var sb strings.Builder
	if err := c.html.ExecuteTemplate(&sb, "document", view); err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return sb.String(), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// color accepts hex colors only; anything else falls back to def.
func color(s, def string) string {
	if s = strings.TrimSpace(s); colorPattern.MatchString(s) {
		return s
	}
	return def
}
