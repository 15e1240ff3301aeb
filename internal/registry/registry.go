// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package registry tracks generated sites on disk. A site exists when
// <root>/<slug>/ is a directory holding an index.html entry file.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/olegiv/webgen-go/internal/util"
)

// Layout of a site directory.
const (
	EntryFile = "index.html"
	AssetsDir = "assets"
)

// reservedNames are top-level directories that are never sites.
var reservedNames = []string{"data", "static", "templates", "vendor", "node_modules"}

// Errors returned by registries.
var (
	ErrInvalidSlug  = errors.New("invalid site slug")
	ErrReservedSlug = errors.New("site name is reserved")
	ErrOutsideRoot  = errors.New("site path escapes the sites directory")
	ErrNotFound     = errors.New("site not found")
	ErrSymlink      = errors.New("site path is a symbolic link")
)

// Registry lists and manages generated sites.
type Registry interface {
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error
	WriteEntry(ctx context.Context, slug string, html []byte) error
	SaveAsset(ctx context.Context, slug, filename string, data []byte) (string, error)
}

// IsReserved reports whether name can never be used as a site slug.
func IsReserved(name string) bool {
	return slices.Contains(reservedNames, strings.ToLower(name))
}

// Disk is a Registry rooted at a directory on the local filesystem.
type Disk struct {
	root   string
	logger *slog.Logger
}

var _ Registry = (*Disk)(nil)

// NewDisk returns a registry for root, creating the directory if needed.
func NewDisk(root string, logger *slog.Logger) (*Disk, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating sites directory: %w", err)
	}
	return &Disk{root: root, logger: logger}, nil
}

// Root returns the sites directory.
func (d *Disk) Root() string {
	return d.root
}

// List returns the slugs of all sites, sorted.
func (d *Disk) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading sites directory: %w", err)
	}

	slugs := []string{}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || IsReserved(name) || strings.HasPrefix(name, ".") {
			continue
		}
		if isFile(filepath.Join(d.root, name, EntryFile)) {
			slugs = append(slugs, name)
		}
	}
	slices.Sort(slugs)
	return slugs, nil
}

// Exists reports whether slug names a site.
func (d *Disk) Exists(_ context.Context, slug string) (bool, error) {
	if err := checkSegment(slug); err != nil {
		return false, nil
	}
	return isFile(filepath.Join(d.root, slug, EntryFile)), nil
}

// Create makes the site directory. Creating an existing site is a no-op.
func (d *Disk) Create(_ context.Context, slug string) error {
	if err := checkSlug(slug); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(d.root, slug), 0o755); err != nil {
		return fmt.Errorf("creating site %s: %w", slug, err)
	}
	return nil
}

// WriteEntry replaces the site's entry file.
func (d *Disk) WriteEntry(_ context.Context, slug string, html []byte) error {
	if err := checkSlug(slug); err != nil {
		return err
	}
	path := filepath.Join(d.root, slug, EntryFile)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// SaveAsset stores an uploaded file under the site's assets directory and
// returns the document-relative URL, e.g. "./assets/logo.png".
func (d *Disk) SaveAsset(_ context.Context, slug, filename string, data []byte) (string, error) {
	if err := checkSlug(slug); err != nil {
		return "", err
	}
	name, err := util.SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(d.root, slug, AssetsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating assets directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing asset %s: %w", name, err)
	}
	return "./" + AssetsDir + "/" + name, nil
}

// Delete removes the site directory and everything below it. A slug that
// is itself a symlink is refused, and the resolved path must land strictly
// inside the root.
func (d *Disk) Delete(_ context.Context, slug string) error {
	if err := checkSegment(slug); err != nil {
		return err
	}
	if IsReserved(slug) {
		return ErrReservedSlug
	}

	info, err := os.Lstat(filepath.Join(d.root, slug))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("inspecting site %s: %w", slug, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		d.logger.Warn("refused site delete through symlink", "slug", slug)
		return ErrSymlink
	}

	root, err := util.ResolvePath(d.root)
	if err != nil {
		return fmt.Errorf("resolving sites directory: %w", err)
	}
	target, err := util.ResolvePath(filepath.Join(d.root, slug))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if !util.IsStrictDescendant(root, target) {
		d.logger.Warn("refused site delete outside sites directory", "slug", slug, "resolved", target)
		return ErrOutsideRoot
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing site %s: %w", slug, err)
	}
	d.logger.Info("site deleted", "slug", slug)
	return nil
}

// checkSegment accepts any single path segment that is not a traversal token.
func checkSegment(slug string) error {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) || strings.ContainsRune(slug, 0) {
		return ErrInvalidSlug
	}
	return nil
}

// checkSlug is the stricter rule for sites this application creates.
func checkSlug(slug string) error {
	if !util.IsValidSlug(slug) {
		return ErrInvalidSlug
	}
	if IsReserved(slug) {
		return ErrReservedSlug
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
