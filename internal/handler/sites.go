// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// sitesPrefix is the URL prefix generated sites are served under.
const sitesPrefix = "/sites/"

// SitesHandler serves generated sites from the registry root. Directory
// listings are never shown: a directory without index.html is a 404.
type SitesHandler struct {
	files http.Handler
}

// NewSitesHandler creates a SitesHandler serving files from root.
func NewSitesHandler(root string) *SitesHandler {
	fsys := indexOnlyFS{http.Dir(root)}
	return &SitesHandler{
		files: http.StripPrefix(strings.TrimSuffix(sitesPrefix, "/"), http.FileServer(fsys)),
	}
}

// ServeHTTP handles GET /sites/*.
func (h *SitesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, sitesPrefix)
	clean := path.Clean("/" + rest)
	if rest == "" || clean == "/" || strings.HasPrefix(path.Base(clean), ".") {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	h.files.ServeHTTP(w, r)
}

// indexOnlyFS hides directories that have no index.html.
type indexOnlyFS struct {
	fs http.FileSystem
}

func (f indexOnlyFS) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !info.IsDir() {
		return file, nil
	}

	index, err := f.fs.Open(path.Join(name, "index.html"))
	if err != nil {
		_ = file.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	_ = index.Close()
	return file, nil
}
