// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidFilename is returned for upload names that reduce to nothing usable.
var ErrInvalidFilename = errors.New("invalid filename")

// unsafeFilenameChars matches characters replaced in uploaded file names.
var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename keeps only the base name of an uploaded file and replaces
// every character outside [a-zA-Z0-9._-] with an underscore, so
// "../../my logo.png" becomes "my_logo.png".
func SanitizeFilename(filename string) (string, error) {
	// Browsers on Windows may send full paths with backslashes.
	filename = strings.ReplaceAll(filename, "\\", "/")
	safe := filepath.Base(filename)
	safe = unsafeFilenameChars.ReplaceAllString(safe, "_")
	if safe == "." || safe == ".." || safe == "" || safe == "/" || strings.Trim(safe, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return safe, nil
}

// IsStrictDescendant reports whether target lies inside base and is not base
// itself. Both paths must already be absolute and resolved.
func IsStrictDescendant(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)
	if target == base {
		return false
	}
	return strings.HasPrefix(target, base+string(filepath.Separator))
}

// ResolvePath returns the absolute, symlink-free form of path.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return resolved, nil
}
