// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cms implements the small page CMS served under /cms: users with
// a user or admin role, pages owned by users, and a configurable footer.
// Everything lives in one JSON document.
package cms

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is a CMS account role.
type Role string

// Roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps form input to a Role. Anything but "admin" is RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Bootstrap values for a fresh document.
const (
	SeedAdminEmail    = "admin@example.com"
	SeedAdminName     = "Admin"
	SeedAdminPassword = "admin123"
	siteName          = "Webgen"
)

// User is a CMS account. Emails are stored lowercased.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Page is a titled piece of Markdown content owned by a user.
type Page struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   int       `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FooterLink is one link in the shared footer.
type FooterLink struct {
	ID        int       `json:"id"`
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// FooterSettings holds the footer text. An empty text renders the default.
type FooterSettings struct {
	Text string `json:"text"`
}

// Document is the persisted CMS state.
type Document struct {
	Users            []User          `json:"users"`
	NextUserID       int             `json:"next_user_id"`
	Pages            []Page          `json:"pages"`
	NextPageID       int             `json:"next_page_id"`
	FooterSettings   *FooterSettings `json:"footer_settings"`
	FooterLinks      []FooterLink    `json:"footer_links"`
	NextFooterLinkID int             `json:"next_footer_link_id"`
}

// DefaultFooterText is shown when the footer text is empty.
func DefaultFooterText(now time.Time) string {
	return fmt.Sprintf("© %d %s", now.Year(), siteName)
}

// needsRepair reports whether normalize would change doc.
func (d *Document) needsRepair() bool {
	return d.needsAdminSeed() ||
		d.Pages == nil || d.FooterLinks == nil || d.FooterSettings == nil ||
		d.NextUserID <= maxID(d.Users, userID) ||
		d.NextPageID <= maxID(d.Pages, pageID) ||
		d.NextFooterLinkID <= maxID(d.FooterLinks, linkID)
}

// normalize backfills missing keys and moves every counter past the
// largest id in use. It does not seed users.
func (d *Document) normalize(now time.Time) {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Pages == nil {
		d.Pages = []Page{}
	}
	if d.FooterLinks == nil {
		d.FooterLinks = []FooterLink{}
	}
	if d.FooterSettings == nil {
		d.FooterSettings = &FooterSettings{Text: DefaultFooterText(now)}
	}
	d.NextUserID = max(d.NextUserID, maxID(d.Users, userID)+1)
	d.NextPageID = max(d.NextPageID, maxID(d.Pages, pageID)+1)
	d.NextFooterLinkID = max(d.NextFooterLinkID, maxID(d.FooterLinks, linkID)+1)
}

func (d *Document) allocUserID() int {
	id := d.NextUserID
	d.NextUserID++
	return id
}

func (d *Document) allocPageID() int {
	id := d.NextPageID
	d.NextPageID++
	return id
}

func (d *Document) allocFooterLinkID() int {
	id := d.NextFooterLinkID
	d.NextFooterLinkID++
	return id
}

func (d *Document) userIndex(id int) int {
	return slices.IndexFunc(d.Users, func(u User) bool { return u.ID == id })
}

func (d *Document) adminCount() int {
	n := 0
	for _, u := range d.Users {
		if u.IsAdmin() {
			n++
		}
	}
	return n
}

// needsAdminSeed reports whether the bootstrap admin should be added: no
// admin exists and the bootstrap email is free.
func (d *Document) needsAdminSeed() bool {
	return d.adminCount() == 0 && d.userByEmail(SeedAdminEmail) < 0
}

func (d *Document) userByEmail(email string) int {
	email = normalizeEmail(email)
	return slices.IndexFunc(d.Users, func(u User) bool { return u.Email == email })
}

func (d *Document) pageIndex(id int) int {
	return slices.IndexFunc(d.Pages, func(p Page) bool { return p.ID == id })
}

func (d *Document) footerLinkIndex(id int) int {
	return slices.IndexFunc(d.FooterLinks, func(l FooterLink) bool { return l.ID == id })
}

// sortedFooterLinks returns the links ordered by position, then creation time.
func (d *Document) sortedFooterLinks() []FooterLink {
	links := slices.Clone(d.FooterLinks)
	slices.SortStableFunc(links, func(a, b FooterLink) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return links
}

func userID(u User) int       { return u.ID }
func pageID(p Page) int       { return p.ID }
func linkID(l FooterLink) int { return l.ID }

func maxID[T any](items []T, id func(T) int) int {
	m := 0
	for _, it := range items {
		m = max(m, id(it))
	}
	return m
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
