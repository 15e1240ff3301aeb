// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strings"
)

// StripTrailingSlash redirects /path/ to /path (HTTP 301). The root path and
// paths under any of the keep prefixes are left alone: generated sites rely
// on directory URLs for relative asset links.
func StripTrailingSlash(keep ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/" || !strings.HasSuffix(path, "/") || hasAnyPrefix(path, keep) {
				next.ServeHTTP(w, r)
				return
			}

			// Collapsing leading slashes keeps the target on this host.
			newPath := "/" + strings.Trim(path, "/")
			if newPath == "/" {
				next.ServeHTTP(w, r)
				return
			}
			newURL := newPath
			if r.URL.RawQuery != "" {
				newURL += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, newURL, http.StatusMovedPermanently)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
