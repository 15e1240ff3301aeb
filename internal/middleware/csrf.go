// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/webgen-go/internal/i18n"
)

// CSRFConfig configures cross-origin protection for the builder, account,
// admin and CMS forms. The check uses Fetch metadata and Origin headers,
// so the templates carry no token field.
type CSRFConfig struct {
	// AuthKey is 32 bytes taken from the session secret.
	AuthKey []byte

	// ErrorHandler answers rejected requests. Nil uses a translated 403.
	ErrorHandler http.Handler

	// TrustedOrigins are host:port values allowed to post cross-origin,
	// such as the public name of a reverse proxy.
	TrustedOrigins []string
}

// DefaultCSRFConfig trusts the given origins. In development the listen
// address and the localhost origins are added as well.
func DefaultCSRFConfig(authKey []byte, isDev bool, addr string, trusted ...string) CSRFConfig {
	var origins []string
	if isDev {
		origins = append(origins, "localhost:8080", "127.0.0.1:8080")
		if addr != "" {
			origins = append(origins, addr)
		}
	}
	for _, o := range trusted {
		if o != "" {
			origins = append(origins, o)
		}
	}
	slices.Sort(origins)
	return CSRFConfig{AuthKey: authKey, TrustedOrigins: slices.Compact(origins)}
}

// CSRF rejects cross-origin POSTs.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	onFail := cfg.ErrorHandler
	if onFail == nil {
		onFail = http.HandlerFunc(rejectCrossOrigin)
	}
	opts := []csrf.Option{csrf.ErrorHandler(onFail)}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

// rejectCrossOrigin runs before the session is loaded, so the language
// comes from Accept-Language.
func rejectCrossOrigin(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("cross-origin form post rejected",
		"category", "auth",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	lang := i18n.MatchLanguage(r.Header.Get("Accept-Language"))
	http.Error(w, i18n.T(lang, "error.cross_origin"), http.StatusForbidden)
}
