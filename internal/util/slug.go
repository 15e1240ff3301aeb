// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides slug generation and path helpers shared by the
// site generator and the site registry.
package util

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlug is used when a name contains nothing that survives slugging.
const DefaultSlug = "site"

// slugRegex matches runs of characters that are not allowed in a slug.
var slugRegex = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify converts a site name into a directory-safe slug. Non-Latin text is
// transliterated first, so "Café Zürich" becomes "cafe-zurich". The result
// always matches ^[a-z0-9-]+$ and never starts or ends with a hyphen; an
// input with nothing usable yields DefaultSlug.
func Slugify(s string) string {
	result := unidecode.Unidecode(norm.NFC.String(s))
	result = strings.ToLower(result)
	result = slugRegex.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if result == "" {
		return DefaultSlug
	}
	return result
}

// IsValidSlug reports whether s is already in slug form.
func IsValidSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	return true
}
