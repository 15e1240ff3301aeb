// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service coordinates the credential store and the site registry
// for operations that touch both.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/registry"
)

// ErrForbidden is returned when the actor may not act on a site.
var ErrForbidden = errors.New("access denied")

// SiteInfo is a site together with its owner, if any.
type SiteInfo struct {
	Slug  string
	Owner string
}

// Sites implements site deletion, user cascades and ownership cleanup.
type Sites struct {
	users  *credential.Store
	sites  registry.Registry
	logger *slog.Logger
}

// NewSites creates a new Sites service.
func NewSites(users *credential.Store, sites registry.Registry, logger *slog.Logger) *Sites {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sites{users: users, sites: sites, logger: logger}
}

// Overview returns every site with its owner, sorted by slug.
func (s *Sites) Overview(ctx context.Context) ([]SiteInfo, error) {
	slugs, err := s.sites.List(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)
	for _, u := range users {
		for _, slug := range u.OwnedPages {
			if _, ok := owners[slug]; !ok {
				owners[slug] = u.Username
			}
		}
	}

	infos := make([]SiteInfo, 0, len(slugs))
	for _, slug := range slugs {
		infos = append(infos, SiteInfo{Slug: slug, Owner: owners[slug]})
	}
	return infos, nil
}

// OwnedSites returns the actor's slugs that still exist on disk.
func (s *Sites) OwnedSites(ctx context.Context, actor credential.Profile) ([]string, error) {
	user, err := s.users.Find(ctx, actor.Username)
	if err != nil {
		return nil, err
	}
	owned := []string{}
	for _, slug := range user.OwnedPages {
		ok, err := s.sites.Exists(ctx, slug)
		if err != nil {
			return nil, err
		}
		if ok {
			owned = append(owned, slug)
		}
	}
	return owned, nil
}

// DeleteSite removes a site the actor owns, or any site for an admin.
// Ownership references are purged from every user even when the
// directory could not be removed.
func (s *Sites) DeleteSite(ctx context.Context, actor credential.Profile, slug string) error {
	if !actor.IsAdmin() {
		owner, err := s.users.OwnerOf(ctx, slug)
		if err != nil {
			return err
		}
		if !strings.EqualFold(owner, actor.Username) {
			return ErrForbidden
		}
	}

	delErr := s.sites.Delete(ctx, slug)
	purged, err := s.users.RemoveOwnedSlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("purging owners of %s: %w", slug, err)
	}

	if errors.Is(delErr, registry.ErrNotFound) && purged > 0 {
		s.logger.Info("removed references to missing site", "slug", slug, "users", purged)
		return nil
	}
	if delErr != nil {
		return delErr
	}
	s.logger.Info("site removed", "slug", slug, "actor", actor.Username, "references", purged)
	return nil
}

// DeleteUser removes a user and every site they own. Site removal
// failures are logged and do not stop the cascade.
func (s *Sites) DeleteUser(ctx context.Context, actor credential.Profile, username string) ([]string, error) {
	target, err := s.users.Find(ctx, username)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(actor.Username), target.Username) {
		return nil, credential.ErrSelfDelete
	}

	var removed []string
	for _, slug := range target.OwnedPages {
		if err := s.sites.Delete(ctx, slug); err != nil && !errors.Is(err, registry.ErrNotFound) {
			s.logger.Error("failed to remove site during user delete", "slug", slug, "username", target.Username, "error", err)
			continue
		}
		removed = append(removed, slug)
	}

	if _, err := s.users.Delete(ctx, actor, target.Username); err != nil {
		return removed, err
	}
	for _, slug := range target.OwnedPages {
		if _, err := s.users.RemoveOwnedSlug(ctx, slug); err != nil {
			s.logger.Warn("failed to purge stale site reference", "slug", slug, "error", err)
		}
	}

	s.logger.Info("user deleted", "username", target.Username, "actor", actor.Username, "sites", len(removed))
	return removed, nil
}

// Refresh re-reads the actor's profile from the store.
func (s *Sites) Refresh(ctx context.Context, actor credential.Profile) (credential.Profile, error) {
	user, err := s.users.Find(ctx, actor.Username)
	if err != nil {
		return credential.Profile{}, err
	}
	return user.Profile(), nil
}

// Reconcile drops ownership references to sites that no longer exist and
// returns the slugs it dropped.
func (s *Sites) Reconcile(ctx context.Context) ([]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var dropped []string
	for _, u := range users {
		for _, slug := range u.OwnedPages {
			if seen[slug] {
				continue
			}
			seen[slug] = true

			ok, err := s.sites.Exists(ctx, slug)
			if err != nil {
				return dropped, err
			}
			if ok {
				continue
			}
			if _, err := s.users.RemoveOwnedSlug(ctx, slug); err != nil {
				return dropped, err
			}
			dropped = append(dropped, slug)
		}
	}

	if len(dropped) > 0 {
		s.logger.Info("dropped references to missing sites", "slugs", dropped)
	}
	return dropped, nil
}
