// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the page templates and static assets.
package web

import "embed"

// Templates holds the layouts, partials and pages parsed by internal/render.
//
//go:embed all:templates
var Templates embed.FS

// Static holds the stylesheet and script served under /static/.
//
//go:embed all:static
var Static embed.FS
