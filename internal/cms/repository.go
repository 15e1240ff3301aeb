// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/webgen-go/internal/auth"
	"github.com/olegiv/webgen-go/internal/docstore"
)

// Repository loads and updates the CMS document. Every Update sees a
// normalized document, so callers never deal with missing keys.
type Repository struct {
	file   *docstore.File[Document]
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository returns a Repository for the document at path.
func NewRepository(path string, opts docstore.Options) *Repository {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		file:   docstore.Open[Document](path, opts),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the document file path.
func (r *Repository) Path() string {
	return r.file.Path()
}

// Load returns the current document. A missing or incomplete document is
// repaired and written back first.
func (r *Repository) Load(ctx context.Context) (Document, error) {
	doc, err := r.file.Read(ctx)
	if err != nil {
		return Document{}, err
	}
	if !doc.needsRepair() {
		return doc, nil
	}

	if err := r.Update(ctx, func(*Document) error { return nil }); err != nil {
		return Document{}, err
	}
	return r.file.Read(ctx)
}

// Update runs fn inside a locked read-modify-write on the normalized document.
func (r *Repository) Update(ctx context.Context, fn func(doc *Document) error) error {
	return r.file.Update(ctx, func(doc *Document) error {
		if err := r.prepare(doc); err != nil {
			return err
		}
		return fn(doc)
	})
}

// prepare normalizes doc and seeds the bootstrap admin when no admin exists.
func (r *Repository) prepare(doc *Document) error {
	now := r.now()
	doc.normalize(now)
	if doc.adminCount() > 0 {
		return nil
	}
	if !doc.needsAdminSeed() {
		r.logger.Error("CMS has no admin and the bootstrap email is taken",
			"category", "config",
			"email", SeedAdminEmail,
			"path", r.file.Path(),
		)
		return nil
	}

	hash, err := auth.HashPassword(SeedAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing bootstrap password: %w", err)
	}
	doc.Users = append(doc.Users, User{
		ID:           doc.allocUserID(),
		Email:        SeedAdminEmail,
		Name:         SeedAdminName,
		PasswordHash: hash,
		Role:         RoleAdmin,
		CreatedAt:    now,
	})
	r.logger.Warn("seeded default CMS admin account with a well-known password",
		"category", "config",
		"email", SeedAdminEmail,
		"path", r.file.Path(),
	)
	return nil
}
