// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

var (
	// Hard wraps keep single newlines as line breaks.
	mdRenderer    = goldmark.New(goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()))
	htmlSanitizer = bluemonday.UGCPolicy()
)

// RenderContent converts page Markdown to sanitized HTML.
func RenderContent(src string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes())) //nolint:gosec // sanitized above
}
