// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitegen

import (
	"html/template"
	"strings"
)

type project struct {
	Title       string
	Description string
	Link        string
}

type plan struct {
	Name     string
	Price    string
	Features []string
}

func buildPortfolio(v Values) any {
	var projects []project
	for _, r := range ParseRecords(v.Get("portfolio_projects"), 3) {
		projects = append(projects, project{Title: r[0], Description: r[1], Link: r[2]})
	}
	return struct {
		About    string
		Projects []project
	}{v.Get("portfolio_about"), projects}
}

func buildContact(v Values) any {
	return struct {
		Email    string
		Phone    string
		Address  string
		Headline string
	}{v.Get("contact_email"), v.Get("contact_phone"), v.Get("contact_address"), v.Get("contact_message")}
}

func buildImprintPrivacy(v Values) any {
	return struct {
		Imprint string
		Privacy string
	}{v.Get("imprint_body"), v.Get("privacy_body")}
}

func buildProduct(v Values) any {
	return struct {
		Name        string
		Description string
		Features    []string
		Price       string
	}{v.Get("product_name"), v.Get("product_description"), ParseLines(v.Get("product_features")), v.Get("product_price")}
}

func buildPricing(v Values) any {
	var plans []plan
	for _, r := range ParseRecords(v.Get("pricing_plans"), 3) {
		plans = append(plans, plan{Name: r[0], Price: r[1], Features: ParseList(r[2], ";")})
	}
	return struct {
		Plans []plan
		CTA   string
	}{plans, v.Get("pricing_cta")}
}

func buildAbout(v Values) any {
	return struct {
		Story      string
		Highlights []string
	}{v.Get("about_story"), ParseLines(v.Get("about_highlights"))}
}

// nl2br escapes s and inserts <br /> before every line break.
func nl2br(s string) template.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = template.HTMLEscapeString(line)
	}
	return template.HTML(strings.Join(lines, "<br />\n"))
}
