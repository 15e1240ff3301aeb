// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version describes the running webgen build.
package version

import "fmt"

// Info is filled from ldflags in cmd/webgen. Empty fields mean a local build.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
}

// Short returns the release tag, or "dev" for untagged builds.
func (i Info) Short() string {
	if i.Version == "" {
		return "dev"
	}
	return i.Version
}

// String is the one-line form printed by `webgen version`.
func (i Info) String() string {
	return fmt.Sprintf("webgen %s (commit: %s, built: %s)", i.Short(), orUnknown(i.GitCommit), orUnknown(i.BuildTime))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
