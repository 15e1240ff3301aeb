// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// StaticCache marks the embedded UI assets as cacheable for maxAge seconds.
func StaticCache(maxAge int) func(http.Handler) http.Handler {
	value := cacheControl(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// SiteCache sets caching for generated sites. Entry documents are
// regenerated in place, so browsers must revalidate them every time.
// Files under the assets directory may be cached for assetMaxAge seconds.
func SiteCache(assetsDir string, assetMaxAge int) func(http.Handler) http.Handler {
	assets := cacheControl(assetMaxAge)
	marker := "/" + assetsDir + "/"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, marker) {
				w.Header().Set("Cache-Control", assets)
			} else {
				w.Header().Set("Cache-Control", "no-cache")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cacheControl(maxAge int) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return "public, max-age=" + strconv.Itoa(maxAge)
}
