// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/webgen-go/internal/i18n"
)

// Timeout bounds the time a page handler may take. A handler that has not
// started its response when the deadline passes is answered with 503 and
// a translated message; whatever it writes afterwards is dropped. Handlers
// see the deadline through the request context, so a builder run waiting
// on the data file lock gives up at the same time.
//
// The session is not loaded yet at this point, so the message language
// comes from Accept-Language alone.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			done := make(chan struct{})
			gw := &guardedWriter{ResponseWriter: w}

			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				gw.mu.Lock()
				defer gw.mu.Unlock()
				gw.expired = true
				if gw.started {
					return
				}
				slog.Warn("request exceeded time limit",
					"category", "http", "method", r.Method, "path", r.URL.Path, "limit", limit)
				http.Error(w, i18n.T(i18n.MatchLanguage(r.Header.Get("Accept-Language")), "error.timeout"), http.StatusServiceUnavailable)
			}
		})
	}
}

// guardedWriter serializes the handler's writes with the timeout reply.
type guardedWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
	expired bool
}

func (gw *guardedWriter) WriteHeader(code int) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.expired || gw.started {
		return
	}
	gw.started = true
	gw.ResponseWriter.WriteHeader(code)
}

func (gw *guardedWriter) Write(b []byte) (int, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !gw.started {
		gw.started = true
		gw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return gw.ResponseWriter.Write(b)
}
