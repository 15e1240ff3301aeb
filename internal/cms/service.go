// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/webgen-go/internal/auth"
)

// DefaultResetPassword is used when an admin resets a password without
// supplying a new one.
const DefaultResetPassword = "changeme123"

// Errors returned by Service.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("access denied")
	ErrSelfDelete         = errors.New("cannot delete own account")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldErrors maps form field names to message keys. A non-empty value is
// returned as an error from mutating operations.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, field := range slices.Sorted(maps.Keys(fe)) {
		parts = append(parts, field+": "+fe[field])
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// Keys returns the distinct message keys in field order.
func (fe FieldErrors) Keys() []string {
	var keys []string
	for _, field := range slices.Sorted(maps.Keys(fe)) {
		if !slices.Contains(keys, fe[field]) {
			keys = append(keys, fe[field])
		}
	}
	return keys
}

func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// PageInput is submitted page form data.
type PageInput struct {
	Title   string
	Content string
}

// UserInput is submitted user form data. Password may be empty on update.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// LinkInput is submitted footer link form data. Position is parsed here so
// that bad input can be echoed back.
type LinkInput struct {
	Label    string
	URL      string
	Position string
}

// PageView is a page joined with its owner.
type PageView struct {
	Page
	OwnerName  string
	OwnerEmail string
}

// Stats summarizes the document for the admin dashboard.
type Stats struct {
	Pages       int
	Users       int
	FooterLinks int
}

// Footer is the footer as rendered on every CMS page.
type Footer struct {
	Text    string // display text, never empty
	RawText string // stored text, possibly empty
	Links   []FooterLink
}

// Service implements the CMS operations.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Init makes sure the document exists and is complete.
func (s *Service) Init(ctx context.Context) error {
	_, err := s.repo.Load(ctx)
	return err
}

// Authenticate checks an email and password. Outdated hashes are upgraded
// after a successful check.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return User{}, err
	}
	i := doc.userByEmail(email)
	if i < 0 {
		return User{}, ErrInvalidCredentials
	}
	user := doc.Users[i]

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("unreadable CMS password hash", "user_id", user.ID, "error", err)
		return User{}, ErrInvalidCredentials
	}
	if !ok {
		return User{}, ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if err := s.setPassword(ctx, user.ID, password); err != nil {
			s.logger.Error("failed to re-hash CMS password", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// UserByID returns the user with id.
func (s *Service) UserByID(ctx context.Context, id int) (User, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return User{}, err
	}
	i := doc.userIndex(id)
	if i < 0 {
		return User{}, ErrNotFound
	}
	return doc.Users[i], nil
}

// ListPages returns the pages visible to actor, newest first. Admins see
// every page.
func (s *Service) ListPages(ctx context.Context, actor User) ([]PageView, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PageView, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if !actor.IsAdmin() && p.OwnerID != actor.ID {
			continue
		}
		views = append(views, viewOf(&doc, p))
	}
	slices.SortFunc(views, func(a, b PageView) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return views, nil
}

// GetPage returns a page if actor owns it or is an admin.
func (s *Service) GetPage(ctx context.Context, actor User, id int) (PageView, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return PageView{}, err
	}
	i := doc.pageIndex(id)
	if i < 0 {
		return PageView{}, ErrNotFound
	}
	if !canAccess(actor, doc.Pages[i]) {
		return PageView{}, ErrForbidden
	}
	return viewOf(&doc, doc.Pages[i]), nil
}

// CreatePage stores a new page owned by actor.
func (s *Service) CreatePage(ctx context.Context, actor User, in PageInput) (Page, error) {
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return Page{}, err
	}

	var page Page
	err := s.repo.Update(ctx, func(doc *Document) error {
		now := s.repo.now()
		page = Page{
			ID:        doc.allocPageID(),
			Title:     in.Title,
			Content:   in.Content,
			OwnerID:   actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		doc.Pages = append(doc.Pages, page)
		return nil
	})
	if err != nil {
		return Page{}, err
	}
	s.logger.Info("page created", "page_id", page.ID, "owner_id", actor.ID)
	return page, nil
}

// UpdatePage changes a page's title and content.
func (s *Service) UpdatePage(ctx context.Context, actor User, id int, in PageInput) (Page, error) {
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return Page{}, err
	}

	var page Page
	err := s.repo.Update(ctx, func(doc *Document) error {
		i := doc.pageIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if !canAccess(actor, doc.Pages[i]) {
			return ErrForbidden
		}
		doc.Pages[i].Title = in.Title
		doc.Pages[i].Content = in.Content
		doc.Pages[i].UpdatedAt = s.repo.now()
		page = doc.Pages[i]
		return nil
	})
	if err != nil {
		return Page{}, err
	}
	s.logger.Info("page updated", "page_id", id, "actor_id", actor.ID)
	return page, nil
}

// DeletePage removes a page.
func (s *Service) DeletePage(ctx context.Context, actor User, id int) error {
	err := s.repo.Update(ctx, func(doc *Document) error {
		i := doc.pageIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if !canAccess(actor, doc.Pages[i]) {
			return ErrForbidden
		}
		doc.Pages = slices.Delete(doc.Pages, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("page deleted", "page_id", id, "actor_id", actor.ID)
	return nil
}

// Stats returns document counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pages:       len(doc.Pages),
		Users:       len(doc.Users),
		FooterLinks: len(doc.FooterLinks),
	}, nil
}

// ListUsers returns every user, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	users := slices.Clone(doc.Users)
	slices.SortFunc(users, func(a, b User) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return users, nil
}

// CreateUser adds a user. Name, email and password are required and the
// email must not be taken.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (User, error) {
	in = in.trimmed()
	if in.Name == "" || in.Email == "" || in.Password == "" {
		fe := FieldErrors{}
		for field, v := range map[string]string{"name": in.Name, "email": in.Email, "password": in.Password} {
			if v == "" {
				fe[field] = "cms.user_fields_required"
			}
		}
		return User{}, fe
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	var user User
	err = s.repo.Update(ctx, func(doc *Document) error {
		if doc.userByEmail(in.Email) >= 0 {
			return FieldErrors{"email": "cms.email_exists"}
		}
		user = User{
			ID:           doc.allocUserID(),
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
			Role:         in.Role,
			CreatedAt:    s.repo.now(),
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("CMS user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// UpdateUser changes a user's name, email and role, and the password when
// one is given.
func (s *Service) UpdateUser(ctx context.Context, id int, in UserInput) (User, error) {
	in = in.trimmed()
	fe := FieldErrors{}
	if in.Name == "" {
		fe["name"] = "cms.name_email_required"
	}
	if in.Email == "" {
		fe["email"] = "cms.name_email_required"
	}
	if err := fe.orNil(); err != nil {
		return User{}, err
	}

	var hash string
	if in.Password != "" {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return User{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	var user User
	err := s.repo.Update(ctx, func(doc *Document) error {
		i := doc.userIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if j := doc.userByEmail(in.Email); j >= 0 && j != i {
			return FieldErrors{"email": "cms.email_exists"}
		}
		u := &doc.Users[i]
		if u.IsAdmin() && in.Role != RoleAdmin && doc.adminCount() == 1 {
			return FieldErrors{"role": "cms.last_admin"}
		}
		u.Name = in.Name
		u.Email = in.Email
		u.Role = in.Role
		if hash != "" {
			u.PasswordHash = hash
		}
		user = *u
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("CMS user updated", "user_id", id, "role", user.Role, "password_changed", hash != "")
	return user, nil
}

// ResetPassword sets a new password and returns the password applied.
// An empty password falls back to DefaultResetPassword.
func (s *Service) ResetPassword(ctx context.Context, id int, password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		password = DefaultResetPassword
	}
	if err := s.setPassword(ctx, id, password); err != nil {
		return "", err
	}
	s.logger.Warn("CMS password reset", "category", "user", "user_id", id)
	return password, nil
}

func (s *Service) setPassword(ctx context.Context, id int, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.repo.Update(ctx, func(doc *Document) error {
		i := doc.userIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Users[i].PasswordHash = hash
		return nil
	})
}

// DeleteUser removes a user together with every page they own and returns
// the number of pages removed. Actors cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor User, id int) (int, error) {
	if actor.ID == id {
		return 0, ErrSelfDelete
	}
	removed := 0
	err := s.repo.Update(ctx, func(doc *Document) error {
		i := doc.userIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Users = slices.Delete(doc.Users, i, i+1)
		before := len(doc.Pages)
		doc.Pages = slices.DeleteFunc(doc.Pages, func(p Page) bool { return p.OwnerID == id })
		removed = before - len(doc.Pages)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Warn("CMS user deleted", "category", "user", "user_id", id, "actor_id", actor.ID, "pages_removed", removed)
	return removed, nil
}

// Footer returns the footer text and sorted links.
func (s *Service) Footer(ctx context.Context) (Footer, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return Footer{}, err
	}
	f := Footer{Links: doc.sortedFooterLinks()}
	if doc.FooterSettings != nil {
		f.RawText = doc.FooterSettings.Text
	}
	f.Text = f.RawText
	if strings.TrimSpace(f.Text) == "" {
		f.Text = DefaultFooterText(s.repo.now())
	}
	return f, nil
}

// UpdateFooterText stores the footer text as given. An empty text shows
// the default.
func (s *Service) UpdateFooterText(ctx context.Context, text string) error {
	err := s.repo.Update(ctx, func(doc *Document) error {
		doc.FooterSettings.Text = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("footer text updated")
	return nil
}

// GetFooterLink returns the link with id.
func (s *Service) GetFooterLink(ctx context.Context, id int) (FooterLink, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return FooterLink{}, err
	}
	i := doc.footerLinkIndex(id)
	if i < 0 {
		return FooterLink{}, ErrNotFound
	}
	return doc.FooterLinks[i], nil
}

// CreateFooterLink adds a footer link.
func (s *Service) CreateFooterLink(ctx context.Context, in LinkInput) (FooterLink, error) {
	label, url, pos, err := in.parse()
	if err != nil {
		return FooterLink{}, err
	}
	var link FooterLink
	err = s.repo.Update(ctx, func(doc *Document) error {
		link = FooterLink{
			ID:        doc.allocFooterLinkID(),
			Label:     label,
			URL:       url,
			Position:  pos,
			CreatedAt: s.repo.now(),
		}
		doc.FooterLinks = append(doc.FooterLinks, link)
		return nil
	})
	if err != nil {
		return FooterLink{}, err
	}
	s.logger.Info("footer link created", "link_id", link.ID)
	return link, nil
}

// UpdateFooterLink changes a footer link.
func (s *Service) UpdateFooterLink(ctx context.Context, id int, in LinkInput) (FooterLink, error) {
	label, url, pos, err := in.parse()
	if err != nil {
		return FooterLink{}, err
	}
	var link FooterLink
	err = s.repo.Update(ctx, func(doc *Document) error {
		i := doc.footerLinkIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		doc.FooterLinks[i].Label = label
		doc.FooterLinks[i].URL = url
		doc.FooterLinks[i].Position = pos
		link = doc.FooterLinks[i]
		return nil
	})
	if err != nil {
		return FooterLink{}, err
	}
	s.logger.Info("footer link updated", "link_id", id)
	return link, nil
}

// DeleteFooterLink removes a footer link.
func (s *Service) DeleteFooterLink(ctx context.Context, id int) error {
	err := s.repo.Update(ctx, func(doc *Document) error {
		i := doc.footerLinkIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		doc.FooterLinks = slices.Delete(doc.FooterLinks, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("footer link deleted", "link_id", id)
	return nil
}

func (in PageInput) trimmed() PageInput {
	return PageInput{Title: strings.TrimSpace(in.Title), Content: strings.TrimSpace(in.Content)}
}

func (in PageInput) validate() error {
	fe := FieldErrors{}
	if in.Title == "" {
		fe["title"] = "cms.title_content_required"
	}
	if in.Content == "" {
		fe["content"] = "cms.title_content_required"
	}
	return fe.orNil()
}

func (in UserInput) trimmed() UserInput {
	role := in.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return UserInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    normalizeEmail(in.Email),
		Password: in.Password,
		Role:     role,
	}
}

// parse validates the link input. An empty position means 0.
func (in LinkInput) parse() (label, url string, position int, err error) {
	label = strings.TrimSpace(in.Label)
	url = strings.TrimSpace(in.URL)
	fe := FieldErrors{}
	if label == "" {
		fe["label"] = "cms.label_url_required"
	}
	if url == "" {
		fe["url"] = "cms.label_url_required"
	}
	if p := strings.TrimSpace(in.Position); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			fe["position"] = "cms.position_number"
		}
		position = n
	}
	if err := fe.orNil(); err != nil {
		return "", "", 0, err
	}
	return label, url, position, nil
}

func canAccess(actor User, p Page) bool {
	return actor.IsAdmin() || p.OwnerID == actor.ID
}

func viewOf(doc *Document, p Page) PageView {
	v := PageView{Page: p, OwnerName: "Unknown"}
	if i := doc.userIndex(p.OwnerID); i >= 0 {
		v.OwnerName = doc.Users[i].Name
		v.OwnerEmail = doc.Users[i].Email
	}
	return v
}

// newestFirst orders by creation time descending, breaking ties by id.
func newestFirst(ta, tb time.Time, ida, idb int) int {
	if c := tb.Compare(ta); c != 0 {
		return c
	}
	return cmp.Compare(idb, ida)
}
