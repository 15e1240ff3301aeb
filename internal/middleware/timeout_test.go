package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimeout(t *testing.T) {
	slow := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}
	redirect := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/sites/my-site/")
		w.WriteHeader(http.StatusSeeOther)
	}
	page := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<h1>Dashboard</h1>"))
	}

	tests := []struct {
		name       string
		method     string
		path       string
		lang       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
		wantHeader string
	}{
		{
			name:       "dashboard renders",
			method:     http.MethodGet,
			path:       "/dashboard",
			handler:    page,
			wantStatus: http.StatusOK,
			wantBody:   "<h1>Dashboard</h1>",
		},
		{
			name:       "generate redirects to site",
			method:     http.MethodPost,
			path:       "/",
			handler:    redirect,
			wantStatus: http.StatusSeeOther,
			wantHeader: "/sites/my-site/",
		},
		{
			name:       "stuck generate",
			method:     http.MethodPost,
			path:       "/",
			handler:    slow,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "took too long",
		},
		{
			name:       "stuck admin page in german",
			method:     http.MethodGet,
			path:       "/admin",
			lang:       "de-DE,de;q=0.9",
			handler:    slow,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "zu lange",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := 2 * time.Second
			if tt.wantStatus == http.StatusServiceUnavailable {
				limit = 50 * time.Millisecond
			}
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}
			rr := httptest.NewRecorder()
			Timeout(limit)(tt.handler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rr.Body.String(), tt.wantBody)
			}
			if tt.wantHeader != "" && rr.Header().Get("Location") != tt.wantHeader {
				t.Errorf("Location = %q, want %q", rr.Header().Get("Location"), tt.wantHeader)
			}
		})
	}
}

func TestGuardedWriter(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		rr := httptest.NewRecorder()
		gw := &guardedWriter{ResponseWriter: rr}
		gw.WriteHeader(http.StatusSeeOther)
		gw.WriteHeader(http.StatusInternalServerError)
		if rr.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusSeeOther)
		}
	})

	t.Run("write implies 200", func(t *testing.T) {
		rr := httptest.NewRecorder()
		gw := &guardedWriter{ResponseWriter: rr}
		if n, err := gw.Write([]byte("hello")); err != nil || n != 5 {
			t.Fatalf("Write() = %d, %v", n, err)
		}
		if !gw.started || rr.Code != http.StatusOK {
			t.Errorf("started = %v, status = %d", gw.started, rr.Code)
		}
	})

	t.Run("late output dropped", func(t *testing.T) {
		rr := httptest.NewRecorder()
		gw := &guardedWriter{ResponseWriter: rr, expired: true}
		if _, err := gw.Write([]byte("late")); err != http.ErrHandlerTimeout {
			t.Errorf("Write() error = %v, want ErrHandlerTimeout", err)
		}
		gw.WriteHeader(http.StatusCreated)
		if rr.Body.Len() != 0 || gw.started {
			t.Errorf("body = %q, started = %v", rr.Body.String(), gw.started)
		}
	})
}
