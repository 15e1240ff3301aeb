// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/webgen-go/internal/i18n"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}<html lang="{{.Lang}}">{{template "flash" .}}{{template "content" .}}</html>{{end}}`)},
		"layouts/cms.html":  {Data: []byte(`{{define "base"}}<cms>{{template "content" .}}</cms>{{end}}`)},
		"partials/flash.html": {Data: []byte(`{{define "flash"}}{{if .Flash}}<p class="flash-{{.FlashType}}">{{.Flash}}</p>{{end}}{{end}}`)},
		"app/home.html":     {Data: []byte(`{{define "content"}}<h1>{{T .Lang "app.name"}}</h1><p>{{.Data}}</p>{{end}}`)},
		"cms/pages.html":    {Data: []byte(`{{define "content"}}pages for {{.User}}{{end}}`)},
		"app/notes.txt":     {Data: []byte(`ignored`)},
	}
}

func newTestRenderer(t *testing.T, sm *scs.SessionManager) *Renderer {
	t.Helper()
	r, err := New(Config{TemplatesFS: testFS(), SessionManager: sm})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNewParsesPagesPerLayout(t *testing.T) {
	r := newTestRenderer(t, nil)

	for _, name := range []string{"app/home", "cms/pages"} {
		if !r.Has(name) {
			t.Errorf("Has(%q) = false, want true", name)
		}
	}
	if r.Has("app/notes") {
		t.Error("non-html files must not be parsed")
	}
}

func TestRenderStatus(t *testing.T) {
	r := newTestRenderer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/cms", nil)
	rr := httptest.NewRecorder()
	err := r.RenderStatus(rr, req, http.StatusUnprocessableEntity, "cms/pages", TemplateData{User: "<alice>"})
	if err != nil {
		t.Fatalf("RenderStatus() error = %v", err)
	}

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got, want := rr.Body.String(), "<cms>pages for &lt;alice&gt;</cms>"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestRenderDefaultsLanguage(t *testing.T) {
	r := newTestRenderer(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := r.Render(rr, req, "app/home", TemplateData{Data: "hi"}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(rr.Body.String(), `<html lang="en">`) {
		t.Errorf("body = %q, want default language en", rr.Body.String())
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	r := newTestRenderer(t, nil)

	rr := httptest.NewRecorder()
	err := r.Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), "app/missing", TemplateData{})
	if err == nil {
		t.Fatal("Render() of unknown template should fail")
	}
	if rr.Body.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}

func TestRenderPopsFlash(t *testing.T) {
	sm := scs.New()
	r := newTestRenderer(t, sm)

	var first, second string
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.SetFlash(req, "Saved & done", FlashSuccess)

		rec := httptest.NewRecorder()
		if err := r.Render(rec, req, "app/home", TemplateData{Lang: "en"}); err != nil {
			t.Errorf("first Render() error = %v", err)
		}
		first = rec.Body.String()

		rec = httptest.NewRecorder()
		if err := r.Render(rec, req, "app/home", TemplateData{Lang: "en"}); err != nil {
			t.Errorf("second Render() error = %v", err)
		}
		second = rec.Body.String()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if want := `<p class="flash-success">Saved &amp; done</p>`; !strings.Contains(first, want) {
		t.Errorf("first render = %q, want flash %q", first, want)
	}
	if strings.Contains(second, "flash-") {
		t.Errorf("second render = %q, flash must be shown once", second)
	}
}

func TestTemplateFuncs(t *testing.T) {
	funcs := (&Renderer{}).TemplateFuncs()
	ts := time.Date(2026, 3, 7, 14, 5, 0, 0, time.UTC)

	formatDate := funcs["formatDate"].(func(time.Time, string) string)
	if got := formatDate(ts, "de"); got != "07.03.2026" {
		t.Errorf("formatDate(de) = %q", got)
	}
	if got := formatDate(ts, "en"); got != "Mar 7, 2026" {
		t.Errorf("formatDate(en) = %q", got)
	}

	formatDateTime := funcs["formatDateTime"].(func(time.Time, string) string)
	if got := formatDateTime(ts, "de"); got != "07.03.2026 14:05" {
		t.Errorf("formatDateTime(de) = %q", got)
	}
	if got := formatDateTime(ts, "en"); got != "Mar 7, 2026 2:05 PM" {
		t.Errorf("formatDateTime(en) = %q", got)
	}

	truncate := funcs["truncate"].(func(string, int) string)
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"longer text", 6, "longer..."},
		{"Grüße aus Köln", 5, "Grüße..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}

	dict := funcs["dict"].(func(...any) map[string]any)
	d := dict("a", 1, "b", "two")
	if d["a"] != 1 || d["b"] != "two" {
		t.Errorf("dict() = %v", d)
	}
	if dict("odd") != nil {
		t.Error("dict() with odd arguments should return nil")
	}

	tr := funcs["T"].(func(string, string, ...any) string)
	if got := tr("de", "nav.logout", "bob"); got != "Abmelden (bob)" {
		t.Errorf("T(de, nav.logout) = %q", got)
	}
}
